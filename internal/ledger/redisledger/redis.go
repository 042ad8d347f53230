// internal/ledger/redisledger/redis.go
package redisledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/token-swap/internal/ledger"
)

const defaultPrefix = "token_swap:account:"

// Options configure key layout and the optimistic retry loop.
type Options struct {
	Prefix string
	Retry  ledger.RetryPolicy
}

// Ledger stores accounts as redis strings and commits each unit of work with
// WATCH/MULTI/EXEC over its declared keys. A conflicting writer aborts EXEC
// and the whole unit is replayed.
type Ledger struct {
	client *redis.Client
	opts   Options
	locks  ledger.KeyLocks
	logger *zap.Logger
}

var _ ledger.Ledger = (*Ledger)(nil)

// New wraps an existing client.
func New(client *redis.Client, opts Options, logger *zap.Logger) *Ledger {
	if opts.Prefix == "" {
		opts.Prefix = defaultPrefix
	}
	return &Ledger{client: client, opts: opts, logger: logger.Named("redis_ledger")}
}

func (l *Ledger) key(addr solana.PublicKey) string {
	return l.opts.Prefix + addr.String()
}

// attempt runs fn once inside a WATCH transaction.
func (l *Ledger) attempt(ctx context.Context, keys []solana.PublicKey, readOnly bool, fn func(ledger.Txn) error) (*ledger.Stage, error) {
	redisKeys := make([]string, len(keys))
	for i, k := range keys {
		redisKeys[i] = l.key(k)
	}

	var (
		stage *ledger.Stage
		fnErr error
	)
	err := l.client.Watch(ctx, func(tx *redis.Tx) error {
		committed := make(map[solana.PublicKey]*ledger.Account, len(keys))
		if len(redisKeys) > 0 {
			vals, err := tx.MGet(ctx, redisKeys...).Result()
			if err != nil {
				return fmt.Errorf("failed to read accounts: %w", err)
			}
			for i, v := range vals {
				raw, ok := v.(string)
				if !ok {
					continue
				}
				acc, err := ledger.UnmarshalAccount(keys[i], []byte(raw))
				if err != nil {
					return err
				}
				committed[keys[i]] = acc
			}
		}

		stage = ledger.NewStage(keys, func(addr solana.PublicKey) (*ledger.Account, error) {
			return committed[addr].Clone(), nil
		}, readOnly)
		if fnErr = fn(stage); fnErr != nil {
			return fnErr
		}

		writes := stage.Writes()
		if readOnly || len(writes) == 0 {
			return nil
		}
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, acc := range writes {
				pipe.Set(ctx, l.key(acc.Address), ledger.MarshalAccount(acc), 0)
			}
			return nil
		})
		return err
	}, redisKeys...)

	if fnErr != nil {
		return nil, fnErr
	}
	if errors.Is(err, redis.TxFailedErr) {
		return nil, ledger.ErrConflict
	}
	if err != nil {
		return nil, err
	}
	return stage, nil
}

func (l *Ledger) run(ctx context.Context, keys []solana.PublicKey, readOnly bool, fn func(ledger.Txn) error) error {
	keys = ledger.SortKeys(keys)
	return ledger.RetryOnConflict(ctx, l.opts.Retry, l.logger, func() error {
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
	return l.client.Close()
}
