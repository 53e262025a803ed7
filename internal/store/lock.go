package store

import (
	"context"
	"sync"

	"github.com/go-authgate/accountgate/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// keyedMutex hands out one mutex per key and frees it when the last holder
// releases, so idle accounts cost nothing.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// WithAccountLock runs fn in a transaction that holds the account's lock.
// Within this process the lock is a per-account mutex; across processes
// it is a row lock (SELECT ... FOR UPDATE) on the account on PostgreSQL.
// Mutations of different accounts never contend. fn must only use tx, and
// receives the freshly loaded account. Returns ErrRecordNotFound when the
// account does not exist.
func (s *Store) WithAccountLock(
	ctx context.Context,
	accountID string,
	fn func(tx *Store, account *models.Account) error,
) error {
	unlock := s.locks.lock(accountID)
	defer unlock()

	return s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		q := db
		if db.Dialector.Name() == "postgres" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		var account models.Account
		if err := q.Where("id = ?", accountID).First(&account).Error; err != nil {
			return err
		}
		return fn(&Store{db: db, locks: s.locks}, &account)
	})
}

// Transaction runs fn in a plain transaction without an account lock.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		return fn(&Store{db: db, locks: s.locks})
	})
}
