package product

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrSaveInFlight is returned when a batch save is requested while a
// previous one has not finished.
var ErrSaveInFlight = errors.New("product save already in flight")

// LoadResult is the server response for a document's line items.
type LoadResult struct {
	Success  bool   `json:"success"`
	Products []Item `json:"products"`
	Summary  string `json:"summary"`
}

// SaveRequest is the whole-batch update submitted to the server.
type SaveRequest struct {
	DocumentID   string `json:"document_id"`
	Products     []Item `json:"products"`
	DocumentType string `json:"document_type"`
}

// SaveResult is the server response to a batch save. On success Products
// holds the normalized batch; on rejection Errors carries validation
// messages keyed by category.
type SaveResult struct {
	Success       bool                `json:"success"`
	Message       string              `json:"message,omitempty"`
	Products      []Item              `json:"products,omitempty"`
	TotalProducts int                 `json:"total_products,omitempty"`
	Summary       string              `json:"summary,omitempty"`
	Errors        map[string][]string `json:"errors,omitempty"`
}

// ConfigLoader fetches the line-item schema configuration.
type ConfigLoader interface {
	ProductConfig(ctx context.Context) (SchemaConfig, error)
}

// Client loads and saves line items for a document.
type Client interface {
	Products(ctx context.Context, documentID string) (LoadResult, error)
	SaveProducts(ctx context.Context, req SaveRequest) (SaveResult, error)
}

// Manager holds the editable line-item batch for one document. All edits
// are local until SaveAll submits the whole batch; a failed save never
// discards local edits.
type Manager struct {
	mu sync.Mutex

	documentID   string
	documentType string

	loader ConfigLoader
	client Client

	config  *SchemaConfig
	items   []Item
	summary string
	errs    map[string][]string
	saving  bool
}

// NewManager returns a manager for a document's line items.
func NewManager(documentID, documentType string, loader ConfigLoader, client Client) *Manager {
	return &Manager{
		documentID:   documentID,
		documentType: documentType,
		loader:       loader,
		client:       client,
	}
}

// Fields returns the editable field set for the manager's document type.
// The schema is fetched once and cached; if the fetch fails the manager
// degrades to an empty field set and retries on the next call.
func (m *Manager) Fields(ctx context.Context) []Field {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.config == nil {
		cfg, err := m.loader.ProductConfig(ctx)
		if err != nil {
			return nil
		}
		m.config = &cfg
	}
	return m.config.FieldsFor(m.documentType)
}

// Load replaces the local batch with the server's current line items.
func (m *Manager) Load(ctx context.Context) error {
	result, err := m.client.Products(ctx, m.documentID)
	if err != nil {
		return fmt.Errorf("load products: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = copyItems(result.Products)
	m.summary = result.Summary
	m.errs = nil
	return nil
}

// Items returns a copy of the local batch.
func (m *Manager) Items() []Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyItems(m.items)
}

// Summary returns the last server-provided batch summary.
func (m *Manager) Summary() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.summary
}

// Errors returns the validation errors from the last rejected save, or
// nil when the last save succeeded.
func (m *Manager) Errors() map[string][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errs
}

// Add appends an empty line item with zeroed base fields.
func (m *Manager) Add() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, Item{
		"product_name": "",
		"quantity":     0.0,
		"unit_price":   0.0,
		"total_price":  0.0,
	})
}

// Remove deletes the item at the given index.
func (m *Manager) Remove(index int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if index < 0 || index >= len(m.items) {
		return fmt.Errorf("product index out of range: %d", index)
	}
	m.items = append(m.items[:index], m.items[index+1:]...)
	return nil
}

// Set assigns a field on the item at the given index. Changing quantity
// or unit_price recomputes total_price; a directly assigned total_price
// is overwritten by the next such recompute.
func (m *Manager) Set(index int, field string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if index < 0 || index >= len(m.items) {
		return fmt.Errorf("product index out of range: %d", index)
	}
	item := m.items[index]
	item[field] = value

	if field == "quantity" || field == "unit_price" {
		item["total_price"] = Total(item["quantity"], item["unit_price"])
	}
	return nil
}

// SaveAll submits the whole batch. On success the local batch is replaced
// with the server's normalized items; on validation rejection or transport
// failure the local edits stay intact, with rejection details available
// via Errors.
func (m *Manager) SaveAll(ctx context.Context) (SaveResult, error) {
	m.mu.Lock()
	if m.saving {
		m.mu.Unlock()
		return SaveResult{}, ErrSaveInFlight
	}
	m.saving = true
	req := SaveRequest{
		DocumentID:   m.documentID,
		Products:     copyItems(m.items),
		DocumentType: m.documentType,
	}
	m.mu.Unlock()

	result, err := m.client.SaveProducts(ctx, req)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.saving = false

	if err != nil {
		return SaveResult{}, fmt.Errorf("save products: %w", err)
	}
	if !result.Success {
		m.errs = result.Errors
		return result, nil
	}

	m.items = copyItems(result.Products)
	m.summary = result.Summary
	m.errs = nil
	return result, nil
}

// Saving reports whether a batch save is currently in flight.
func (m *Manager) Saving() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saving
}

func copyItems(items []Item) []Item {
	out := make([]Item, len(items))
	for i, item := range items {
		dup := make(Item, len(item))
		for k, v := range item {
			dup[k] = v
		}
		out[i] = dup
	}
	return out
}
