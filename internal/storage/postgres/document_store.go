package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/offers/internal/domain"
)

type documentStore struct {
	store *Store
}

// NewDocumentStore создаёт хранилище PDF в таблице offer_documents.
func NewDocumentStore(store *Store) domain.DocumentStore {
	return &documentStore{store: store}
}

func (s *documentStore) Get(ctx context.Context, offerID string) (domain.Document, error) {
	ctx, cancel := opContext(ctx)
	defer cancel()

	var doc domain.Document
	err := s.store.q(ctx).QueryRowContext(ctx, `
		SELECT offer_id, content, content_type, generated_at
		FROM offer_documents
		WHERE offer_id = $1
	`, offerID).Scan(&doc.OfferID, &doc.Content, &doc.ContentType, &doc.GeneratedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Document{}, domain.ErrDocumentNotFound
		}
		return domain.Document{}, fmt.Errorf("select document: %w", err)
	}
	doc.GeneratedAt = doc.GeneratedAt.UTC()
	return doc, nil
}

func (s *documentStore) Put(ctx context.Context, doc domain.Document) error {
	ctx, cancel := opContext(ctx)
	defer cancel()

	if _, err := s.store.q(ctx).ExecContext(ctx, `
		INSERT INTO offer_documents (offer_id, content, content_type, generated_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (offer_id) DO UPDATE
		SET content = EXCLUDED.content,
		    content_type = EXCLUDED.content_type,
		    generated_at = EXCLUDED.generated_at
	`, doc.OfferID, doc.Content, doc.ContentType, doc.GeneratedAt); err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	return nil
}

// Delete не считает отсутствие документа ошибкой.
func (s *documentStore) Delete(ctx context.Context, offerID string) error {
	ctx, cancel := opContext(ctx)
	defer cancel()

	if _, err := s.store.q(ctx).ExecContext(ctx, `DELETE FROM offer_documents WHERE offer_id = $1`, offerID); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

var _ domain.DocumentStore = (*documentStore)(nil)
