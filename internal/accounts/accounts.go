// Package accounts holds the synced account list. The list is replaced
// wholesale on each successful sync and never patched field by field.
package accounts

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"connectkit/internal/model"
)

// List is the thread-safe holder of the current account set.
type List struct {
	mu       sync.RWMutex
	accounts []model.Account
}

// NewList returns an empty account list.
func NewList() *List {
	return &List{}
}

// All returns a copy of the current account records.
func (l *List) All() []model.Account {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]model.Account(nil), l.accounts...)
}

// Get finds the account holding addr.
func (l *List) Get(addr common.Address) (model.Account, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, a := range l.accounts {
		if a.FreshAddress == addr {
			return a, true
		}
	}
	return model.Account{}, false
}

// Replace swaps in a new account set. Readers see either the old or the
// new list, never a mix.
func (l *List) Replace(accounts []model.Account) {
	next := append([]model.Account(nil), accounts...)
	l.mu.Lock()
	l.accounts = next
	l.mu.Unlock()
}

// Len returns the number of accounts.
func (l *List) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.accounts)
}
