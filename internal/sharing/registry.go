package sharing

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/openmedrec/medrec-go/internal/logutil"
	"github.com/openmedrec/medrec-go/internal/store"
)

var (
	ErrInvalidAccessLevel  = errors.New("invalid access level")
	ErrInvalidGroup        = errors.New("invalid share group")
	ErrInvalidEmail        = errors.New("invalid grantee email")
	ErrOwnerShareImmutable = errors.New("owner share cannot be modified or deleted")
	ErrUnauthorizedAccess  = errors.New("unauthorized access")
)

var validate = validator.New()

// Registry manages shares on patient records. Exactly one share per record
// carries the owner group; it is created with the record and can never be
// deleted or demoted.
type Registry struct {
	shares   store.ShareStore
	accounts store.AccountStore
	logger   *slog.Logger
}

// NewRegistry creates a new share registry.
func NewRegistry(shares store.ShareStore, accounts store.AccountStore, logger *slog.Logger) *Registry {
	return &Registry{
		shares:   shares,
		accounts: accounts,
		logger:   logutil.NoopIfNil(logger),
	}
}

// CreateOwnerShare creates the owner share for a freshly created record.
// Invoked once, atomically with record creation; the registry does not
// deduplicate, idempotency is the caller's responsibility.
func (r *Registry) CreateOwnerShare(ctx context.Context, patientID string, owner *store.Account) (*store.Share, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}

	share := &store.Share{
		ID:           id.String(),
		PatientID:    patientID,
		GranteeEmail: owner.Email,
		GranteeID:    owner.ID,
		Access:       AccessWrite,
		Group:        GroupOwner,
		Resolved:     true,
	}

	if err := r.shares.CreateShare(ctx, share); err != nil {
		return nil, err
	}
	return share, nil
}

// Create grants access to a patient record. The grantee may be an existing
// account or a bare email for someone not yet registered; in the latter case
// the share stays unresolved until a matching account appears.
func (r *Registry) Create(ctx context.Context, patientID, granteeEmail, access, group string) (*store.Share, error) {
	if !grantableAccess[access] {
		return nil, ErrInvalidAccessLevel
	}
	if err := validateGroup(group); err != nil {
		return nil, err
	}
	if validate.Var(granteeEmail, "required,email") != nil {
		return nil, ErrInvalidEmail
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}

	share := &store.Share{
		ID:           id.String(),
		PatientID:    patientID,
		GranteeEmail: granteeEmail,
		Access:       access,
		Group:        group,
	}

	// Resolve immediately if the grantee already has an account.
	grantee, err := r.accounts.GetAccountByEmail(ctx, granteeEmail)
	switch {
	case err == nil:
		share.GranteeID = grantee.ID
		share.Resolved = true
	case errors.Is(err, store.ErrNotFound):
		// stays pending
	default:
		return nil, err
	}

	if err := r.shares.CreateShare(ctx, share); err != nil {
		return nil, err
	}

	r.logger.Info("share created", "share_id", share.ID, "patient_id", patientID, "resolved", share.Resolved)
	return share, nil
}

// Update changes a share's access level and/or group. nil means keep the
// current value. The owner share rejects any update.
func (r *Registry) Update(ctx context.Context, shareID string, access, group *string) (*store.Share, error) {
	share, err := r.shares.GetShare(ctx, shareID)
	if err != nil {
		return nil, err
	}

	if share.Group == GroupOwner {
		return nil, ErrOwnerShareImmutable
	}

	if access != nil {
		if !grantableAccess[*access] {
			return nil, ErrInvalidAccessLevel
		}
		share.Access = *access
	}
	if group != nil {
		if err := validateGroup(*group); err != nil {
			return nil, err
		}
		share.Group = *group
	}

	if err := r.shares.UpdateShare(ctx, share); err != nil {
		return nil, err
	}
	return share, nil
}

// Delete removes a share. The owner share cannot be deleted.
func (r *Registry) Delete(ctx context.Context, shareID string) error {
	share, err := r.shares.GetShare(ctx, shareID)
	if err != nil {
		return err
	}
	if share.Group == GroupOwner {
		return ErrOwnerShareImmutable
	}
	return r.shares.DeleteShare(ctx, shareID)
}

// Get retrieves a share by id.
func (r *Registry) Get(ctx context.Context, shareID string) (*store.Share, error) {
	return r.shares.GetShare(ctx, shareID)
}

// MaxListLimit bounds a single page of shares.
const MaxListLimit = 100

// List returns shares on a record ordered by id (creation order for equal
// sort keys, since ids are UUIDv7). limit is clamped to MaxListLimit;
// limit <= 0 selects the maximum page.
func (r *Registry) List(ctx context.Context, patientID string, limit, offset int) ([]*store.Share, error) {
	if limit <= 0 || limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return r.shares.ListSharesByPatient(ctx, patientID, limit, offset)
}

// ResolvePending flips unresolved shares whose grantee email matches the
// newly registered account. It never creates shares, and resolution never
// reverses. Returns how many shares were resolved.
func (r *Registry) ResolvePending(ctx context.Context, account *store.Account) (int, error) {
	pending, err := r.shares.ListPendingSharesByEmail(ctx, account.Email)
	if err != nil {
		return 0, err
	}

	var resolved int
	for _, share := range pending {
		share.GranteeID = account.ID
		share.Resolved = true
		if err := r.shares.UpdateShare(ctx, share); err != nil {
			return resolved, err
		}
		resolved++
	}

	if resolved > 0 {
		r.logger.Info("pending shares resolved", "account_id", account.ID, "count", resolved)
	}
	return resolved, nil
}

// OwnedPatientIDs returns the ids of records whose owner share belongs to
// the account.
func (r *Registry) OwnedPatientIDs(ctx context.Context, accountID string) ([]string, error) {
	shares, err := r.shares.ListSharesByGrantee(ctx, accountID)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, share := range shares {
		if share.Group == GroupOwner {
			ids = append(ids, share.PatientID)
		}
	}
	return ids, nil
}

// DeleteForGrantee removes all non-owner shares held by an account. Used
// when the account is deleted. Records the account owns are handled
// separately by record deletion.
func (r *Registry) DeleteForGrantee(ctx context.Context, accountID string) error {
	shares, err := r.shares.ListSharesByGrantee(ctx, accountID)
	if err != nil {
		return err
	}
	for _, share := range shares {
		if share.Group == GroupOwner {
			continue
		}
		if err := r.shares.DeleteShare(ctx, share.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
	}
	return nil
}

// DeleteForPatient removes every share on a record, the owner share
// included. Only record deletion goes through here.
func (r *Registry) DeleteForPatient(ctx context.Context, patientID string) error {
	return r.shares.DeleteSharesByPatient(ctx, patientID)
}

func validateGroup(group string) error {
	if strings.TrimSpace(group) == "" {
		return ErrInvalidGroup
	}
	if group == GroupOwner {
		return ErrInvalidGroup
	}
	return nil
}
