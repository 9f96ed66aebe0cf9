// internal/services/lock_manager.go
package services

import (
	"sync"
	"time"
)

// LockManager hands out per-document mutexes so concurrent edits on the
// same document serialize instead of racing on the JSON file underneath.
type LockManager struct {
	documentLocks map[string]*LockInfo
	globalLock    sync.RWMutex
	cleanupTicker *time.Ticker
}

// LockInfo pairs a lock with its last-used timestamp for cleanup
type LockInfo struct {
	Mutex    *sync.RWMutex
	LastUsed time.Time
}

func NewLockManager() *LockManager {
	lm := &LockManager{
		documentLocks: make(map[string]*LockInfo),
	}

	lm.startCleanup()
	return lm
}

// GetDocumentLock returns the lock for a document, creating it on first use
func (lm *LockManager) GetDocumentLock(docID string) *sync.RWMutex {
	lm.globalLock.RLock()
	if lockInfo, exists := lm.documentLocks[docID]; exists {
		lm.globalLock.RUnlock()
		lockInfo.LastUsed = time.Now()
		return lockInfo.Mutex
	}
	lm.globalLock.RUnlock()

	lm.globalLock.Lock()
	defer lm.globalLock.Unlock()

	// double-check under the write lock
	if lockInfo, exists := lm.documentLocks[docID]; exists {
		lockInfo.LastUsed = time.Now()
		return lockInfo.Mutex
	}

	lock := &sync.RWMutex{}
	lm.documentLocks[docID] = &LockInfo{
		Mutex:    lock,
		LastUsed: time.Now(),
	}
	return lock
}

// ExecuteWithDocumentLock runs fn while holding the document's write lock
func (lm *LockManager) ExecuteWithDocumentLock(docID string, fn func() error) error {
	lock := lm.GetDocumentLock(docID)
	lock.Lock()
	defer lock.Unlock()
	return fn()
}

// ExecuteWithDocumentReadLock runs fn while holding the document's read lock
func (lm *LockManager) ExecuteWithDocumentReadLock(docID string, fn func() error) error {
	lock := lm.GetDocumentLock(docID)
	lock.RLock()
	defer lock.RUnlock()
	return fn()
}

func (lm *LockManager) startCleanup() {
	lm.cleanupTicker = time.NewTicker(5 * time.Minute)
	go func() {
		for range lm.cleanupTicker.C {
			lm.cleanupUnusedLocks()
		}
	}()
}

func (lm *LockManager) cleanupUnusedLocks() {
	lm.globalLock.Lock()
	defer lm.globalLock.Unlock()

	const maxLocks = 200
	const lockTimeout = 30 * time.Minute

	if len(lm.documentLocks) > maxLocks {
		now := time.Now()
		for docID, lockInfo := range lm.documentLocks {
			if now.Sub(lockInfo.LastUsed) > lockTimeout {
				delete(lm.documentLocks, docID)
			}
		}
	}
}
