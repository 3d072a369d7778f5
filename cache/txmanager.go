package cache

import (
	"context"

	"github.com/agentuity/go-cache/logger"
	"github.com/cockroachdb/errors"
)

// TxManager holds the TransactionalCache of every shared cache a session has
// touched. All calls made through it carry the session's owner id, so
// BlockingCache locks taken by a miss belong to the session and are released
// by its Commit or Rollback.
//
// A TxManager belongs to one session and is not safe for concurrent use.
type TxManager struct {
	owner  string
	opts   []Option
	logger logger.Logger
	caches map[Cache]*TransactionalCache
	order  []Cache
}

// NewTxManager returns a manager with a freshly generated owner id.
func NewTxManager(opts ...Option) *TxManager {
	cfg := applyOptions(opts)
	_, owner := NewOwner(context.Background())
	return &TxManager{
		owner:  owner,
		opts:   opts,
		logger: cfg.logger.WithPrefix("[tx]").With(map[string]interface{}{"owner": owner}),
		caches: make(map[Cache]*TransactionalCache),
	}
}

// Owner returns the owner id attached to forwarded calls.
func (m *TxManager) Owner() string {
	return m.owner
}

// Context returns ctx carrying the session's owner id.
func (m *TxManager) Context(ctx context.Context) context.Context {
	return WithOwner(ctx, m.owner)
}

func (m *TxManager) Get(ctx context.Context, c Cache, key any) (bool, any, error) {
	return m.transactional(c).Get(m.Context(ctx), key)
}

func (m *TxManager) Put(ctx context.Context, c Cache, key any, value any) error {
	return m.transactional(c).Put(m.Context(ctx), key, value)
}

func (m *TxManager) Clear(ctx context.Context, c Cache) error {
	return m.transactional(c).Clear(m.Context(ctx))
}

// Commit commits every cache in the order they were first used. Every cache
// is committed even if an earlier one fails; failures are returned together.
func (m *TxManager) Commit(ctx context.Context) error {
	ctx = m.Context(ctx)
	var errs error
	for _, c := range m.order {
		if err := m.caches[c].Commit(ctx); err != nil {
			errs = errors.CombineErrors(errs, errors.Wrapf(err, "committing cache %s", c.ID()))
		}
	}
	return errs
}

// Rollback rolls back every cache, continuing past failures.
func (m *TxManager) Rollback(ctx context.Context) error {
	ctx = m.Context(ctx)
	var errs error
	for _, c := range m.order {
		if err := m.caches[c].Rollback(ctx); err != nil {
			errs = errors.CombineErrors(errs, errors.Wrapf(err, "rolling back cache %s", c.ID()))
		}
	}
	if errs != nil {
		m.logger.Warn("rollback completed with errors: %v", errs)
	}
	return errs
}

func (m *TxManager) transactional(c Cache) *TransactionalCache {
	tc, ok := m.caches[c]
	if !ok {
		tc = NewTransactional(c, m.opts...)
		m.caches[c] = tc
		m.order = append(m.order, c)
	}
	return tc
}
