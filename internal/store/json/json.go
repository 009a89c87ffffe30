// Package json implements a JSON file-based persistence driver.
// It uses atomic writes (temp file + fsync + rename) and in-process locking.
package json

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/openmedrec/medrec-go/internal/store"
)

func init() {
	store.Register("json", NewDriver)
}

// Driver implements the store.Driver interface using JSON files.
type Driver struct {
	dataDir string
	mu      sync.RWMutex
	closed  bool

	// In-memory state loaded from JSON
	accounts map[string]*store.Account // keyed by id
	patients map[string]*store.Patient // keyed by id
	shares   map[string]*store.Share   // keyed by id

	// Secondary index
	byEmail map[string]string // email -> account id
}

// accountRecord is the on-disk form of an account. The store.Account json
// tags hide the password hash and token list from API responses, which
// would also strip them from the data files, so the driver persists its
// own representation with every field explicit.
type accountRecord struct {
	ID             string          `json:"id"`
	Email          string          `json:"email"`
	PasswordHash   string          `json:"password_hash"`
	FailedAttempts int             `json:"failed_attempts"`
	LockUntil      *time.Time      `json:"lock_until,omitempty"`
	ActiveTokens   store.TokenList `json:"active_tokens"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func toRecord(a *store.Account) *accountRecord {
	return &accountRecord{
		ID:             a.ID,
		Email:          a.Email,
		PasswordHash:   a.PasswordHash,
		FailedAttempts: a.FailedAttempts,
		LockUntil:      a.LockUntil,
		ActiveTokens:   a.ActiveTokens,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}

func fromRecord(r *accountRecord) *store.Account {
	return &store.Account{
		ID:             r.ID,
		Email:          r.Email,
		PasswordHash:   r.PasswordHash,
		FailedAttempts: r.FailedAttempts,
		LockUntil:      r.LockUntil,
		ActiveTokens:   r.ActiveTokens,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

// NewDriver creates a new JSON driver instance.
func NewDriver(cfg *store.DriverConfig) (store.Driver, error) {
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("data_dir is required for json driver")
	}

	return &Driver{
		dataDir:  cfg.DataDir,
		accounts: make(map[string]*store.Account),
		patients: make(map[string]*store.Patient),
		shares:   make(map[string]*store.Share),
		byEmail:  make(map[string]string),
	}, nil
}

// Name returns the driver name.
func (d *Driver) Name() string {
	return "json"
}

// Init loads data from JSON files.
func (d *Driver) Init(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := os.MkdirAll(d.dataDir, 0700); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	var records map[string]*accountRecord
	if err := d.loadFile("accounts.json", &records); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to load accounts: %w", err)
	}
	for id, r := range records {
		d.accounts[id] = fromRecord(r)
	}
	if err := d.loadFile("patients.json", &d.patients); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to load patients: %w", err)
	}
	if err := d.loadFile("shares.json", &d.shares); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to load shares: %w", err)
	}

	d.rebuildIndexes()

	return nil
}

// Close releases resources.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// loadFile loads a JSON file into the target map.
func (d *Driver) loadFile(filename string, target any) error {
	path := filepath.Join(d.dataDir, filename)
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, target)
}

// saveFile atomically writes data to a JSON file.
// Pattern: write to temp file, fsync, rename.
func (d *Driver) saveFile(filename string, data any) error {
	path := filepath.Join(d.dataDir, filename)
	tempPath := path + ".tmp"

	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	f, err := os.OpenFile(tempPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := f.Write(jsonData); err != nil {
		f.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	// Fsync to ensure data is on disk
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// saveAccounts writes the account map in its on-disk record form.
func (d *Driver) saveAccounts() error {
	records := make(map[string]*accountRecord, len(d.accounts))
	for id, a := range d.accounts {
		records[id] = toRecord(a)
	}
	return d.saveFile("accounts.json", records)
}

// rebuildIndexes rebuilds secondary indexes from primary data.
func (d *Driver) rebuildIndexes() {
	d.byEmail = make(map[string]string)
	for id, account := range d.accounts {
		d.byEmail[account.Email] = id
	}
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

	return d.saveAccounts()
}

func (d *Driver) GetAccount(ctx context.Context, id string) (*store.Account, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return nil, store.ErrClosed
	}

	account, ok := d.accounts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneAccount(account), nil
}

func (d *Driver) GetAccountByEmail(ctx context.Context, email string) (*store.Account, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return nil, store.ErrClosed
	}

	id, ok := d.byEmail[email]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneAccount(d.accounts[id]), nil
}

func (d *Driver) GetAccountByToken(ctx context.Context, token string) (*store.Account, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return nil, store.ErrClosed
	}

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

	if d.closed {
		return store.ErrClosed
	}

	existing, ok := d.accounts[account.ID]
	if !ok {
		return store.ErrNotFound
	}

	if existing.Email != account.Email {
		delete(d.byEmail, existing.Email)
		d.byEmail[account.Email] = account.ID
	}

	account.UpdatedAt = time.Now()
	d.accounts[account.ID] = cloneAccount(account)

	return d.saveAccounts()
}

func (d *Driver) DeleteAccount(ctx context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return store.ErrClosed
	}

	account, ok := d.accounts[id]
	if !ok {
		return store.ErrNotFound
	}
	delete(d.byEmail, account.Email)
	delete(d.accounts, id)

	return d.saveAccounts()
}

// PatientStore implementation

func (d *Driver) CreatePatient(ctx context.Context, patient *store.Patient) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return store.ErrClosed
	}
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

	return d.saveFile("patients.json", d.patients)
}

func (d *Driver) GetPatient(ctx context.Context, id string) (*store.Patient, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return nil, store.ErrClosed
	}

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

	if d.closed {
		return store.ErrClosed
	}
	if _, ok := d.patients[patient.ID]; !ok {
		return store.ErrNotFound
	}

	patient.UpdatedAt = time.Now()
	p := *patient
	d.patients[patient.ID] = &p

	return d.saveFile("patients.json", d.patients)
}

func (d *Driver) DeletePatient(ctx context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return store.ErrClosed
	}
	if _, ok := d.patients[id]; !ok {
		return store.ErrNotFound
	}
	delete(d.patients, id)

	return d.saveFile("patients.json", d.patients)
}

// ShareStore implementation

func (d *Driver) CreateShare(ctx context.Context, share *store.Share) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return store.ErrClosed
	}
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

	return d.saveFile("shares.json", d.shares)
}

func (d *Driver) GetShare(ctx context.Context, id string) (*store.Share, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return nil, store.ErrClosed
	}

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

	if d.closed {
		return store.ErrClosed
	}
	if _, ok := d.shares[share.ID]; !ok {
		return store.ErrNotFound
	}

	share.UpdatedAt = time.Now()
	s := *share
	d.shares[share.ID] = &s

	return d.saveFile("shares.json", d.shares)
}

func (d *Driver) DeleteShare(ctx context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return store.ErrClosed
	}
	if _, ok := d.shares[id]; !ok {
		return store.ErrNotFound
	}
	delete(d.shares, id)

	return d.saveFile("shares.json", d.shares)
}

func (d *Driver) ListSharesByPatient(ctx context.Context, patientID string, limit, offset int) ([]*store.Share, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return nil, store.ErrClosed
	}

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

	if d.closed {
		return nil, store.ErrClosed
	}

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

	if d.closed {
		return nil, store.ErrClosed
	}

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

	if d.closed {
		return store.ErrClosed
	}

	for id, share := range d.shares {
		if share.PatientID == patientID {
			delete(d.shares, id)
		}
	}

	return d.saveFile("shares.json", d.shares)
}

// Compile-time interface check
var _ store.Driver = (*Driver)(nil)
