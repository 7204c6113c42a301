package storefake

import (
	"sync"

	"github.com/jrsteele09/go-chat-client/credentials"
)

var _ credentials.Store = (*FakeStore)(nil)

type FakeStore struct {
	values map[string]string
	lock   sync.RWMutex
}

func NewFakeStore() *FakeStore {
	return &FakeStore{
		values: make(map[string]string),
	}
}

func (fs *FakeStore) Get(key string) (string, bool) {
	fs.lock.RLock()
	defer fs.lock.RUnlock()
	value, ok := fs.values[key]
	return value, ok
}

func (fs *FakeStore) Set(key, value string) bool {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	fs.values[key] = value
	return true
}

func (fs *FakeStore) Remove(key string) bool {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	if _, ok := fs.values[key]; !ok {
		return false
	}
	delete(fs.values, key)
	return true
}
