// Package store persists documents, their extracted fields and line
// items, and the field value history behind suggestions.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"invoiceflow/internal/product"
)

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

var (
	ErrNotFound = errors.New("document not found")
	// ErrTerminal rejects status changes on completed or errored documents.
	ErrTerminal = errors.New("document already in a terminal state")
)

// Document is a stored uploaded document with its processing state.
type Document struct {
	ID             uuid.UUID
	Filename       string
	Status         string
	ErrorMessage   string
	Fields         map[string]any
	Products       []product.Item
	ProductSummary string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Store struct {
	db DBTX
}

func New(db DBTX) *Store {
	return &Store{db: db}
}

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id UUID PRIMARY KEY,
	filename TEXT NOT NULL,
	content BYTEA NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'uploaded',
	error_message TEXT NOT NULL DEFAULT '',
	fields JSONB NOT NULL DEFAULT '{}',
	products JSONB NOT NULL DEFAULT '[]',
	product_summary TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS field_history (
	id BIGSERIAL PRIMARY KEY,
	field_name TEXT NOT NULL,
	value TEXT NOT NULL,
	used_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS field_history_name_idx
	ON field_history (field_name, used_at DESC);
`

// EnsureSchema creates the tables when they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// CreateDocument inserts a freshly uploaded document with its raw bytes.
func (s *Store) CreateDocument(ctx context.Context, filename string, content []byte) (Document, error) {
	doc := Document{
		ID:       uuid.New(),
		Filename: filename,
		Status:   "uploaded",
		Fields:   map[string]any{},
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO documents (id, filename, content, status) VALUES ($1, $2, $3, $4)`,
		doc.ID, doc.Filename, content, doc.Status)
	if err != nil {
		return Document{}, fmt.Errorf("create document: %w", err)
	}
	return doc, nil
}

// GetContent loads the raw uploaded bytes of a document.
func (s *Store) GetContent(ctx context.Context, id uuid.UUID) ([]byte, error) {
	var content []byte
	err := s.db.QueryRow(ctx,
		`SELECT content FROM documents WHERE id = $1`, id).Scan(&content)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get content: %w", err)
	}
	return content, nil
}

// GetDocument loads a document by ID.
func (s *Store) GetDocument(ctx context.Context, id uuid.UUID) (Document, error) {
	var (
		doc          Document
		fieldsJSON   []byte
		productsJSON []byte
	)
	err := s.db.QueryRow(ctx,
		`SELECT id, filename, status, error_message, fields, products, product_summary,
		        created_at, updated_at
		 FROM documents WHERE id = $1`, id).
		Scan(&doc.ID, &doc.Filename, &doc.Status, &doc.ErrorMessage,
			&fieldsJSON, &productsJSON, &doc.ProductSummary,
			&doc.CreatedAt, &doc.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("get document: %w", err)
	}

	if err := json.Unmarshal(fieldsJSON, &doc.Fields); err != nil {
		return Document{}, fmt.Errorf("decode fields: %w", err)
	}
	if err := json.Unmarshal(productsJSON, &doc.Products); err != nil {
		return Document{}, fmt.Errorf("decode products: %w", err)
	}
	return doc, nil
}

// SetStatus moves a document to a new processing state. Completed and
// errored documents are final; a late transition is rejected with
// ErrTerminal so stale updates cannot resurrect a finished document.
func (s *Store) SetStatus(ctx context.Context, id uuid.UUID, status, errorMessage string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE documents
		 SET status = $2, error_message = $3, updated_at = now()
		 WHERE id = $1 AND status NOT IN ('completed', 'error')`,
		id, status, errorMessage)
	if err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := s.db.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM documents WHERE id = $1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("set status: %w", err)
		}
		if !exists {
			return ErrNotFound
		}
		return ErrTerminal
	}
	return nil
}

// SetFields replaces the whole extracted field map.
func (s *Store) SetFields(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	b, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode fields: %w", err)
	}
	tag, err := s.db.Exec(ctx,
		`UPDATE documents SET fields = $2, updated_at = now() WHERE id = $1`, id, b)
	if err != nil {
		return fmt.Errorf("set fields: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveProducts replaces the line-item batch and its summary.
func (s *Store) SaveProducts(ctx context.Context, id uuid.UUID, items []product.Item, summary string) error {
	b, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode products: %w", err)
	}
	tag, err := s.db.Exec(ctx,
		`UPDATE documents
		 SET products = $2, product_summary = $3, updated_at = now()
		 WHERE id = $1`, id, b, summary)
	if err != nil {
		return fmt.Errorf("save products: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordFieldValue remembers a saved field value for later suggestions.
// Empty values are not worth remembering.
func (s *Store) RecordFieldValue(ctx context.Context, fieldName, value string) error {
	if value == "" {
		return nil
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO field_history (field_name, value) VALUES ($1, $2)`, fieldName, value)
	if err != nil {
		return fmt.Errorf("record field value: %w", err)
	}
	return nil
}

// FieldSuggestions returns distinct previously used values for a field,
// most recently used first.
func (s *Store) FieldSuggestions(ctx context.Context, fieldName string, limit int) ([]string, error) {
	rows, err := s.db.Query(ctx,
		`SELECT value FROM field_history
		 WHERE field_name = $1
		 GROUP BY value
		 ORDER BY MAX(used_at) DESC
		 LIMIT $2`, fieldName, limit)
	if err != nil {
		return nil, fmt.Errorf("field suggestions: %w", err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("field suggestions: %w", err)
		}
		values = append(values, v)
	}
	return values, rows.Err()
}
