package store

import (
	"context"
	"database/sql"
	"time"

	driver "github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/fairyhunter13/order-processing-simulator/internal/model"
	"github.com/fairyhunter13/order-processing-simulator/internal/obs"
)

// mysqlDuplicateEntry is the MySQL error number for a unique-key violation.
const mysqlDuplicateEntry = 1062

// MySQLConfig carries connection settings for the MySQL store.
type MySQLConfig struct {
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
	ConnRetries  int
	RetryBackoff time.Duration
}

// MySQL is a Store backed by MySQL through GORM. Units of work run as
// serializable transactions; the ledger's unique index on transaction_id is
// the sole cross-worker synchronization for duplicates.
type MySQL struct {
	db *gorm.DB
}

// OpenMySQL connects with bounded retries and backoff, configures the
// connection pool, and migrates the ledger and product tables. The retry
// loop runs at startup only; per-request failures are never retried here.
func OpenMySQL(ctx context.Context, cfg MySQLConfig) (*MySQL, error) {
	if cfg.DSN == "" {
		return nil, errors.New("mysql store: empty DSN")
	}
	var (
		db      *gorm.DB
		lastErr error
	)
	attempts := cfg.ConnRetries
	if attempts <= 0 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		db, lastErr = gorm.Open(gormmysql.Open(cfg.DSN), &gorm.Config{
			Logger:         logger.Default.LogMode(logger.Silent),
			TranslateError: true,
		})
		if lastErr == nil {
			break
		}
		obs.Logger.Warn().Err(lastErr).Int("attempt", i+1).Int("max_attempts", attempts).
			Msg("database unavailable, retrying")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(cfg.RetryBackoff):
		}
	}
	if lastErr != nil {
		return nil, errors.Wrap(lastErr, "open mysql store")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "mysql store: underlying pool")
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if err := db.WithContext(ctx).AutoMigrate(&model.LedgerEntry{}, &model.Product{}); err != nil {
		return nil, errors.Wrap(err, "mysql store: migrate")
	}
	return &MySQL{db: db}, nil
}

type mysqlUnit struct {
	tx *gorm.DB
}

// RunUnit executes fn inside one serializable transaction. GORM commits on
// nil and rolls back on error, so no partial ledger entry or decrement can
// survive a failure.
func (s *MySQL) RunUnit(ctx context.Context, fn func(Unit) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&mysqlUnit{tx: tx})
	}, &sql.TxOptions{Isolation: sql.LevelSerializable})
}

func (u *mysqlUnit) InsertIfAbsent(ctx context.Context, transactionID string, customerID, productID int64) (bool, error) {
	entry := model.LedgerEntry{
		TransactionID: transactionID,
		CustomerID:    customerID,
		ProductID:     productID,
		Quantity:      1,
		Status:        model.StatusProcessing,
	}
	err := u.tx.WithContext(ctx).Create(&entry).Error
	if err == nil {
		return true, nil
	}
	if isDuplicateKey(err) {
		return false, nil
	}
	return false, errors.Wrap(err, "insert ledger entry")
}

func (u *mysqlUnit) ConditionalDecrement(ctx context.Context, productID int64) (int64, bool, error) {
	res := u.tx.WithContext(ctx).
		Model(&model.Product{}).
		Where("id = ? AND stock > 0", productID).
		UpdateColumn("stock", gorm.Expr("stock - 1"))
	if res.Error != nil {
		return 0, false, errors.Wrap(res.Error, "decrement stock")
	}
	var p model.Product
	if err := u.tx.WithContext(ctx).Take(&p, productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, false, ErrUnknownProduct
		}
		return 0, false, errors.Wrap(err, "read stock")
	}
	return p.Stock, res.RowsAffected == 1, nil
}

func (u *mysqlUnit) UpdateStatus(ctx context.Context, transactionID string, status model.LedgerStatus) error {
	res := u.tx.WithContext(ctx).
		Model(&model.LedgerEntry{}).
		Where("transaction_id = ?", transactionID).
		Update("status", status)
	if res.Error != nil {
		return errors.Wrap(res.Error, "update ledger status")
	}
	if res.RowsAffected == 0 {
		return ErrUnknownEntry
	}
	return nil
}

// SeedProduct creates or resets the inventory record for a product.
func (s *MySQL) SeedProduct(ctx context.Context, productID, stock int64) error {
	p := model.Product{ID: productID, Stock: stock}
	err := s.db.WithContext(ctx).Save(&p).Error
	return errors.Wrap(err, "seed product")
}

// CountByStatus reports the number of ledger entries in a status. Reads go
// straight to the database so the audit catches in-memory divergence.
func (s *MySQL) CountByStatus(ctx context.Context, status model.LedgerStatus) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).
		Model(&model.LedgerEntry{}).
		Where("status = ?", status).
		Count(&n).Error
	if err != nil {
		return 0, errors.Wrap(err, "count ledger entries")
	}
	return n, nil
}

// Stock reads the current stock of a product.
func (s *MySQL) Stock(ctx context.Context, productID int64) (int64, error) {
	var p model.Product
	if err := s.db.WithContext(ctx).Take(&p, productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrUnknownProduct
		}
		return 0, errors.Wrap(err, "read stock")
	}
	return p.Stock, nil
}

// Close releases the underlying connection pool.
func (s *MySQL) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// isDuplicateKey recognizes a unique-constraint violation either via GORM's
// translated error or the raw MySQL error number.
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var myErr *driver.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDuplicateEntry
	}
	return false
}
