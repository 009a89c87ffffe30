// Package sqlite implements a SQLite-based persistence driver using GORM.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/openmedrec/medrec-go/internal/store"
)

func init() {
	store.Register("sqlite", NewDriver)
}

// Driver implements the store.Driver interface using SQLite via GORM.
type Driver struct {
	dataDir string
	db      *gorm.DB
}

// NewDriver creates a new SQLite driver instance.
func NewDriver(cfg *store.DriverConfig) (store.Driver, error) {
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("data_dir is required for sqlite driver")
	}

	return &Driver{
		dataDir: cfg.DataDir,
	}, nil
}

// Name returns the driver name.
func (d *Driver) Name() string {
	return "sqlite"
}

// Init initializes the SQLite database and runs AutoMigrate.
func (d *Driver) Init(ctx context.Context) error {
	dbPath := filepath.Join(d.dataDir, "medrec.db")

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		// Needed so unique-index violations surface as gorm.ErrDuplicatedKey.
		TranslateError: true,
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	d.db = db

	// AutoMigrate creates/updates tables based on model structs
	if err := db.AutoMigrate(
		&store.Account{},
		&store.Patient{},
		&store.Share{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (d *Driver) Close() error {
	if d.db == nil {
		return nil
	}
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// AccountStore implementation

// CreateAccount creates a new account.
func (d *Driver) CreateAccount(ctx context.Context, account *store.Account) error {
	result := d.db.WithContext(ctx).Create(account)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return store.ErrAlreadyExists
		}
		return result.Error
	}
	return nil
}

// GetAccount retrieves an account by id.
func (d *Driver) GetAccount(ctx context.Context, id string) (*store.Account, error) {
	var account store.Account
	result := d.db.WithContext(ctx).First(&account, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, result.Error
	}
	return &account, nil
}

// GetAccountByEmail retrieves an account by exact email match.
func (d *Driver) GetAccountByEmail(ctx context.Context, email string) (*store.Account, error) {
	var account store.Account
	result := d.db.WithContext(ctx).First(&account, "email = ?", email)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, result.Error
	}
	return &account, nil
}

// GetAccountByToken retrieves the account holding the given bearer token.
// Tokens are fixed-length hex strings stored in a JSON array column, so a
// quoted substring match cannot produce false positives.
func (d *Driver) GetAccountByToken(ctx context.Context, token string) (*store.Account, error) {
	var account store.Account
	pattern := fmt.Sprintf(`%%"%s"%%`, token)
	result := d.db.WithContext(ctx).First(&account, "active_tokens LIKE ?", pattern)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, result.Error
	}
	return &account, nil
}

// UpdateAccount updates an existing account.
func (d *Driver) UpdateAccount(ctx context.Context, account *store.Account) error {
	result := d.db.WithContext(ctx).Save(account)
	return result.Error
}

// DeleteAccount deletes an account by id.
func (d *Driver) DeleteAccount(ctx context.Context, id string) error {
	result := d.db.WithContext(ctx).Delete(&store.Account{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// PatientStore implementation

// CreatePatient creates a new patient record.
func (d *Driver) CreatePatient(ctx context.Context, patient *store.Patient) error {
	result := d.db.WithContext(ctx).Create(patient)
	return result.Error
}

// GetPatient retrieves a patient record by id.
func (d *Driver) GetPatient(ctx context.Context, id string) (*store.Patient, error) {
	var patient store.Patient
	result := d.db.WithContext(ctx).First(&patient, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, result.Error
	}
	return &patient, nil
}

// UpdatePatient updates an existing patient record.
func (d *Driver) UpdatePatient(ctx context.Context, patient *store.Patient) error {
	result := d.db.WithContext(ctx).Save(patient)
	return result.Error
}

// DeletePatient deletes a patient record by id.
func (d *Driver) DeletePatient(ctx context.Context, id string) error {
	result := d.db.WithContext(ctx).Delete(&store.Patient{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ShareStore implementation

// CreateShare creates a new share.
func (d *Driver) CreateShare(ctx context.Context, share *store.Share) error {
	result := d.db.WithContext(ctx).Create(share)
	return result.Error
}

// GetShare retrieves a share by id.
func (d *Driver) GetShare(ctx context.Context, id string) (*store.Share, error) {
	var share store.Share
	result := d.db.WithContext(ctx).First(&share, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, result.Error
	}
	return &share, nil
}

// UpdateShare updates an existing share.
func (d *Driver) UpdateShare(ctx context.Context, share *store.Share) error {
	result := d.db.WithContext(ctx).Save(share)
	return result.Error
}

// DeleteShare deletes a share by id.
func (d *Driver) DeleteShare(ctx context.Context, id string) error {
	result := d.db.WithContext(ctx).Delete(&store.Share{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ListSharesByPatient returns shares for a patient ordered by id.
func (d *Driver) ListSharesByPatient(ctx context.Context, patientID string, limit, offset int) ([]*store.Share, error) {
	var shares []*store.Share
	query := d.db.WithContext(ctx).Where("patient_id = ?", patientID).Order("id")
	if offset > 0 {
		query = query.Offset(offset)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	result := query.Find(&shares)
	if result.Error != nil {
		return nil, result.Error
	}
	return shares, nil
}

// ListSharesByGrantee returns resolved shares held by an account.
func (d *Driver) ListSharesByGrantee(ctx context.Context, granteeID string) ([]*store.Share, error) {
	var shares []*store.Share
	result := d.db.WithContext(ctx).
		Where("resolved = ? AND grantee_id = ?", true, granteeID).
		Order("id").
		Find(&shares)
	if result.Error != nil {
		return nil, result.Error
	}
	return shares, nil
}

// ListPendingSharesByEmail returns unresolved shares granted to an email.
func (d *Driver) ListPendingSharesByEmail(ctx context.Context, email string) ([]*store.Share, error) {
	var shares []*store.Share
	result := d.db.WithContext(ctx).
		Where("resolved = ? AND grantee_email = ?", false, email).
		Order("id").
		Find(&shares)
	if result.Error != nil {
		return nil, result.Error
	}
	return shares, nil
}

// DeleteSharesByPatient removes all shares for a patient.
func (d *Driver) DeleteSharesByPatient(ctx context.Context, patientID string) error {
	result := d.db.WithContext(ctx).Delete(&store.Share{}, "patient_id = ?", patientID)
	return result.Error
}

// Compile-time interface check
var _ store.Driver = (*Driver)(nil)
