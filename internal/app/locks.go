package service

import (
	"sync"

	"github.com/okian/perfboard/internal/domain/model"
)

// keyedLocks serializes read-modify-write sequences on one document while
// leaving other documents free. Entries are dropped once nobody holds them.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	sync.Mutex
	refs int
}

// lock blocks until key is free and returns its release func.
func (k *keyedLocks) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*keyedLock)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

func employeeKey(id string) string { return model.CollectionEmployees + "/" + id }

func userKey(uid string) string { return model.CollectionUsers + "/" + uid }
