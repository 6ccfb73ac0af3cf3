package service

import "sync"

// LockSet serializes index mutations per user. Ingestion and deletion
// rewrite the on-disk artifacts with read-modify-write cycles, so two
// concurrent uploads from the same user must queue; different users never
// contend. Queries take no lock.
type LockSet struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewLockSet() *LockSet {
	return &LockSet{locks: make(map[string]*sync.Mutex)}
}

func (l *LockSet) forUser(userID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[userID] = lock
	}
	return lock
}
