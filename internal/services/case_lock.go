package services

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"

	"gorm.io/gorm"
)

// CaseLocker serializes payment creation per case identifier. The duplicate
// check and the insert must run under the same lock: two identical
// submissions racing through the gate would otherwise both pass the check
// before either row exists.
type CaseLocker interface {
	WithCaseLock(ctx context.Context, caseID string, fn func(ctx context.Context) error) error
}

// GormCaseLocker holds a postgres advisory lock on the case identifier for
// the duration of fn. Advisory locks are database-wide, so the gate holds
// across every instance sharing the database.
type GormCaseLocker struct {
	db *gorm.DB
}

func NewGormCaseLocker(db *gorm.DB) *GormCaseLocker {
	return &GormCaseLocker{db: db}
}

func (l *GormCaseLocker) WithCaseLock(ctx context.Context, caseID string, fn func(ctx context.Context) error) error {
	// session-level lock on a pinned connection: fn runs its own
	// transactions while the lock is held
	return l.db.WithContext(ctx).Connection(func(conn *gorm.DB) error {
		key := caseLockKey(caseID)
		if err := conn.Exec("SELECT pg_advisory_lock(?)", key).Error; err != nil {
			return fmt.Errorf("failed to lock case %s: %w", caseID, err)
		}
		defer conn.Exec("SELECT pg_advisory_unlock(?)", key)
		return fn(ctx)
	})
}

func caseLockKey(caseID string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(caseID))
	return int64(h.Sum64())
}

// MemoryCaseLocker is the in-process substitute used by unit tests.
type MemoryCaseLocker struct {
	mu    sync.Mutex
	cases map[string]*sync.Mutex
}

func NewMemoryCaseLocker() *MemoryCaseLocker {
	return &MemoryCaseLocker{cases: make(map[string]*sync.Mutex)}
}

func (l *MemoryCaseLocker) WithCaseLock(ctx context.Context, caseID string, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	m, ok := l.cases[caseID]
	if !ok {
		m = &sync.Mutex{}
		l.cases[caseID] = m
	}
	l.mu.Unlock()

	m.Lock()
	defer m.Unlock()
	return fn(ctx)
}
