// Package memory implements an in-memory persistence driver.
// Used by unit tests and dev mode; data does not survive a restart.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/openmedrec/medrec-go/internal/store"
)

func init() {
	store.Register("memory", NewDriver)
}

// Driver implements the store.Driver interface with mutex-guarded maps.
type Driver struct {
	mu       sync.RWMutex
	accounts map[string]*store.Account // by ID
	byEmail  map[string]string         // email -> ID
	patients map[string]*store.Patient // by ID
	shares   map[string]*store.Share   // by ID
	closed   bool
}

// NewDriver creates a new in-memory driver instance.
func NewDriver(cfg *store.DriverConfig) (store.Driver, error) {
	return &Driver{
		accounts: make(map[string]*store.Account),
		byEmail:  make(map[string]string),
		patients: make(map[string]*store.Patient),
		shares:   make(map[string]*store.Share),
	}, nil
}

// Name returns the driver name.
func (d *Driver) Name() string { return "memory" }

// Init is a no-op for the memory driver.
func (d *Driver) Init(ctx context.Context) error { return nil }

// Close marks the driver closed.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// cloneAccount copies an account, including its token slice, so callers
// never alias stored state.
func cloneAccount(a *store.Account) *store.Account {
	c := *a
	if a.LockUntil != nil {
		t := *a.LockUntil
		c.LockUntil = &t
	}
	c.ActiveTokens = append(store.TokenList(nil), a.ActiveTokens...)
	return &c
}

// AccountStore implementation

func (d *Driver) CreateAccount(ctx context.Context, account *store.Account) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return store.ErrClosed
	}
	if _, exists := d.byEmail[account.Email]; exists {
		return store.ErrAlreadyExists
	}

	now := time.Now()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now

	d.accounts[account.ID] = cloneAccount(account)
	d.byEmail[account.Email] = account.ID
	return nil
}

func (d *Driver) GetAccount(ctx context.Context, id string) (*store.Account, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	account, ok := d.accounts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneAccount(account), nil
}

func (d *Driver) GetAccountByEmail(ctx context.Context, email string) (*store.Account, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	id, ok := d.byEmail[email]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneAccount(d.accounts[id]), nil
}

func (d *Driver) GetAccountByToken(ctx context.Context, token string) (*store.Account, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, account := range d.accounts {
		for _, t := range account.ActiveTokens {
			if t == token {
				return cloneAccount(account), nil
			}
		}
	}
	return nil, store.ErrNotFound
}

func (d *Driver) UpdateAccount(ctx context.Context, account *store.Account) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	existing, ok := d.accounts[account.ID]
	if !ok {
		return store.ErrNotFound
	}

	// Email is immutable once validated; keep the index consistent anyway.
	if existing.Email != account.Email {
		delete(d.byEmail, existing.Email)
		d.byEmail[account.Email] = account.ID
	}

	account.UpdatedAt = time.Now()
	d.accounts[account.ID] = cloneAccount(account)
	return nil
}

func (d *Driver) DeleteAccount(ctx context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	account, ok := d.accounts[id]
	if !ok {
		return store.ErrNotFound
	}
	delete(d.byEmail, account.Email)
	delete(d.accounts, id)
	return nil
}

// PatientStore implementation

func (d *Driver) CreatePatient(ctx context.Context, patient *store.Patient) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.patients[patient.ID]; exists {
		return store.ErrAlreadyExists
	}

	now := time.Now()
	if patient.CreatedAt.IsZero() {
		patient.CreatedAt = now
	}
	patient.UpdatedAt = now

	p := *patient
	d.patients[patient.ID] = &p
	return nil
}

func (d *Driver) GetPatient(ctx context.Context, id string) (*store.Patient, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	patient, ok := d.patients[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	p := *patient
	return &p, nil
}

func (d *Driver) UpdatePatient(ctx context.Context, patient *store.Patient) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.patients[patient.ID]; !ok {
		return store.ErrNotFound
	}
	patient.UpdatedAt = time.Now()
	p := *patient
	d.patients[patient.ID] = &p
	return nil
}

func (d *Driver) DeletePatient(ctx context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.patients[id]; !ok {
		return store.ErrNotFound
	}
	delete(d.patients, id)
	return nil
}

// ShareStore implementation

func (d *Driver) CreateShare(ctx context.Context, share *store.Share) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.shares[share.ID]; exists {
		return store.ErrAlreadyExists
	}

	now := time.Now()
	if share.CreatedAt.IsZero() {
		share.CreatedAt = now
	}
	share.UpdatedAt = now

	s := *share
	d.shares[share.ID] = &s
	return nil
}

func (d *Driver) GetShare(ctx context.Context, id string) (*store.Share, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	share, ok := d.shares[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	s := *share
	return &s, nil
}

func (d *Driver) UpdateShare(ctx context.Context, share *store.Share) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.shares[share.ID]; !ok {
		return store.ErrNotFound
	}
	share.UpdatedAt = time.Now()
	s := *share
	d.shares[share.ID] = &s
	return nil
}

func (d *Driver) DeleteShare(ctx context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.shares[id]; !ok {
		return store.ErrNotFound
	}
	delete(d.shares, id)
	return nil
}

func (d *Driver) ListSharesByPatient(ctx context.Context, patientID string, limit, offset int) ([]*store.Share, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var result []*store.Share
	for _, share := range d.shares {
		if share.PatientID == patientID {
			s := *share
			result = append(result, &s)
		}
	}

	// Sort by id; UUIDv7 ids are time-ordered so this is creation order.
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })

	if offset > 0 {
		if offset >= len(result) {
			return nil, nil
		}
		result = result[offset:]
	}
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (d *Driver) ListSharesByGrantee(ctx context.Context, granteeID string) ([]*store.Share, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var result []*store.Share
	for _, share := range d.shares {
		if share.Resolved && share.GranteeID == granteeID {
			s := *share
			result = append(result, &s)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (d *Driver) ListPendingSharesByEmail(ctx context.Context, email string) ([]*store.Share, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var result []*store.Share
	for _, share := range d.shares {
		if !share.Resolved && share.GranteeEmail == email {
			s := *share
			result = append(result, &s)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (d *Driver) DeleteSharesByPatient(ctx context.Context, patientID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for id, share := range d.shares {
		if share.PatientID == patientID {
			delete(d.shares, id)
		}
	}
	return nil
}

// Compile-time interface check
var _ store.Driver = (*Driver)(nil)
