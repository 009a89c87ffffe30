package sharing

import (
	"context"

	"github.com/openmedrec/medrec-go/internal/store"
)

// Resolver computes the effective access level an account holds over a
// record by combining its shares. Side-effect-free; safe to call repeatedly
// per request.
type Resolver struct {
	shares store.ShareStore
}

// NewResolver creates a new authorization resolver.
func NewResolver(shares store.ShareStore) *Resolver {
	return &Resolver{shares: shares}
}

// EffectiveAccess returns one of none, read, write, owner.
//
// Shares match by resolved account identity, never by email string. An
// owner-group share short-circuits to owner. Otherwise the highest level
// among matching shares wins: sharing is additive, a user may hold
// overlapping grants through different groups. No matching share means none.
func (r *Resolver) EffectiveAccess(ctx context.Context, account *store.Account, patientID string) (string, error) {
	shares, err := r.shares.ListSharesByPatient(ctx, patientID, 0, 0)
	if err != nil {
		return AccessNone, err
	}

	best := AccessNone
	for _, share := range shares {
		if !share.Resolved || share.GranteeID != account.ID {
			continue
		}
		if share.Group == GroupOwner {
			return AccessOwner, nil
		}
		if accessRank(share.Access) > accessRank(best) {
			best = share.Access
		}
	}

	// A default grant is reported as the level it resolves to.
	if best == AccessDefault {
		best = AccessRead
	}
	return best, nil
}

// Authorize returns ErrUnauthorizedAccess unless the account's effective
// access over the record satisfies required.
func (r *Resolver) Authorize(ctx context.Context, account *store.Account, patientID, required string) error {
	effective, err := r.EffectiveAccess(ctx, account, patientID)
	if err != nil {
		return err
	}
	if !Allows(effective, required) {
		return ErrUnauthorizedAccess
	}
	return nil
}
