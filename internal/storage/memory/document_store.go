package memory

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/offers/internal/domain"
)

type documentStoreInMemory struct {
	mu   sync.RWMutex
	docs map[string]domain.Document
}

// NewDocumentStore создаёт in-memory хранилище PDF.
func NewDocumentStore() domain.DocumentStore {
	return &documentStoreInMemory{docs: make(map[string]domain.Document)}
}

func (s *documentStoreInMemory) Get(_ context.Context, offerID string) (domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[offerID]
	if !ok {
		return domain.Document{}, domain.ErrDocumentNotFound
	}
	doc.Content = append([]byte(nil), doc.Content...)
	return doc, nil
}

func (s *documentStoreInMemory) Put(_ context.Context, doc domain.Document) error {
	doc.Content = append([]byte(nil), doc.Content...)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.OfferID] = doc
	return nil
}

func (s *documentStoreInMemory) Delete(_ context.Context, offerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, offerID)
	return nil
}

var _ domain.DocumentStore = (*documentStoreInMemory)(nil)
