package memory

import (
	"sync"

	"github.com/hhkuy/sums-qz/internal/app"
)

// DialogStore is an in-memory implementation of app.DialogRepository.
// Dialog state is short-lived and never needs to outlive the process.
type DialogStore struct {
	mu      sync.RWMutex
	dialogs map[string]*app.Dialog
}

func NewDialogStore() *DialogStore {
	return &DialogStore{
		dialogs: make(map[string]*app.Dialog),
	}
}

func (s *DialogStore) Put(conversationID string, d *app.Dialog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dialogs[conversationID] = d
}

func (s *DialogStore) Get(conversationID string) (*app.Dialog, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.dialogs[conversationID]
	return d, ok
}

func (s *DialogStore) Delete(conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.dialogs, conversationID)
}
