package kb

import "sync"

// KBLocks 每个 kb_id 一把读写锁：构建持写锁（同一 KB 的构建互斥），
// 检索持读锁（互相并发，但不与构建并发）。不同 kb_id 互不影响。
type KBLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.RWMutex
}

// NewKBLocks 创建锁表
func NewKBLocks() *KBLocks {
	return &KBLocks{
		locks: make(map[string]*sync.RWMutex),
	}
}

// Get 返回 kb_id 对应的锁，首次访问时创建
func (l *KBLocks) Get(kbID string) *sync.RWMutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	lock, ok := l.locks[kbID]
	if !ok {
		lock = &sync.RWMutex{}
		l.locks[kbID] = lock
	}
	return lock
}
