// internal/ledger/postgres/postgres.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rovshanmuradov/token-swap/internal/ledger"
)

// AccountRecord is the row backing one ledger account.
type AccountRecord struct {
	Address   string `gorm:"primaryKey;size:44"`
	Owner     string `gorm:"size:44;not null"`
	Data      []byte
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (AccountRecord) TableName() string { return "ledger_accounts" }

func (r *AccountRecord) account() (*ledger.Account, error) {
	addr, err := solana.PublicKeyFromBase58(r.Address)
	if err != nil {
		return nil, fmt.Errorf("corrupt address %q: %w", r.Address, err)
	}
	owner, err := solana.PublicKeyFromBase58(r.Owner)
	if err != nil {
		return nil, fmt.Errorf("corrupt owner of %s: %w", r.Address, err)
	}
	return &ledger.Account{Address: addr, Owner: owner, Data: r.Data}, nil
}

// Ledger keeps accounts in a postgres table. A unit of work locks the rows
// of its declared accounts (SELECT ... FOR UPDATE, in address order); creation
// races are settled by the primary key and replayed as conflicts.
type Ledger struct {
	db     *gorm.DB
	retry  ledger.RetryPolicy
	locks  ledger.KeyLocks
	logger *zap.Logger
}

var _ ledger.Ledger = (*Ledger)(nil)

// Open connects to dsn.
func Open(dsn string, retry ledger.RetryPolicy, zapLogger *zap.Logger) (*Ledger, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: newGormLogger(zapLogger.Named("gorm")),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return &Ledger{db: db, retry: retry, logger: zapLogger.Named("pg_ledger")}, nil
}

// Migrate creates the accounts table under an advisory lock.
func (l *Ledger) Migrate(ctx context.Context) error {
	db := l.db.WithContext(ctx)

	var lockObtained bool
	if err := db.Raw("SELECT pg_try_advisory_lock(101)").Scan(&lockObtained).Error; err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	if !lockObtained {
		return fmt.Errorf("another migration is in progress")
	}
	defer db.Exec("SELECT pg_advisory_unlock(101)")

	if err := db.AutoMigrate(&AccountRecord{}); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func (l *Ledger) attempt(ctx context.Context, keys []solana.PublicKey, readOnly bool, fn func(ledger.Txn) error) (*ledger.Stage, error) {
	addrs := make([]string, len(keys))
	for i, k := range keys {
		addrs[i] = k.String()
	}

	var (
		stage *ledger.Stage
		fnErr error
	)
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var records []AccountRecord
		q := tx.Where("address IN ?", addrs).Order("address")
		if !readOnly {
			q = q.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		if len(addrs) > 0 {
			if err := q.Find(&records).Error; err != nil {
				return fmt.Errorf("failed to lock accounts: %w", err)
			}
		}

		committed := make(map[solana.PublicKey]*ledger.Account, len(records))
		for i := range records {
			acc, err := records[i].account()
			if err != nil {
				return err
			}
			committed[acc.Address] = acc
		}

		stage = ledger.NewStage(keys, func(addr solana.PublicKey) (*ledger.Account, error) {
			return committed[addr].Clone(), nil
		}, readOnly)
		if fnErr = fn(stage); fnErr != nil {
			return fnErr
		}
		if readOnly {
			return nil
		}

		for _, acc := range stage.Writes() {
			rec := AccountRecord{Address: acc.Address.String(), Owner: acc.Owner.String(), Data: acc.Data}
			if stage.Created(acc.Address) {
				if err := tx.Create(&rec).Error; err != nil {
					return err
				}
				continue
			}
			err := tx.Model(&AccountRecord{}).
				Where("address = ?", rec.Address).
				Updates(map[string]interface{}{"owner": rec.Owner, "data": rec.Data}).Error
			if err != nil {
				return err
			}
		}
		return nil
	})

	if fnErr != nil {
		return nil, fnErr
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, ledger.ErrConflict
	}
	if err != nil {
		return nil, err
	}
	return stage, nil
}

func (l *Ledger) run(ctx context.Context, keys []solana.PublicKey, readOnly bool, fn func(ledger.Txn) error) error {
	keys = ledger.SortKeys(keys)
	return ledger.RetryOnConflict(ctx, l.retry, l.logger, func() error {
		// хуки коммита этого процесса идут в порядке коммитов
		if !readOnly {
			unlock := l.locks.Lock(keys)
			defer unlock()
		}
		stage, err := l.attempt(ctx, keys, readOnly, fn)
		if err != nil {
			return err
		}
		stage.RunHooks()
		return nil
	})
}

func (l *Ledger) Update(ctx context.Context, keys []solana.PublicKey, fn func(ledger.Txn) error) error {
	return l.run(ctx, keys, false, fn)
}

func (l *Ledger) View(ctx context.Context, keys []solana.PublicKey, fn func(ledger.Txn) error) error {
	return l.run(ctx, keys, true, fn)
}

func (l *Ledger) Close() error {
	sqlDB, err := l.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
