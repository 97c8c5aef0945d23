package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"invoiceflow/internal/config"
	"invoiceflow/internal/product"
	"invoiceflow/internal/store"
)

type fakeStorage struct {
	mu      sync.Mutex
	docs    map[uuid.UUID]*store.Document
	content map[uuid.UUID][]byte
	history []string
	suggest []string
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		docs:    make(map[uuid.UUID]*store.Document),
		content: make(map[uuid.UUID][]byte),
	}
}

func (f *fakeStorage) CreateDocument(ctx context.Context, filename string, content []byte) (store.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc := store.Document{ID: uuid.New(), Filename: filename, Status: "uploaded", Fields: map[string]any{}}
	f.docs[doc.ID] = &doc
	f.content[doc.ID] = content
	return doc, nil
}

func (f *fakeStorage) GetDocument(ctx context.Context, id uuid.UUID) (store.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return store.Document{}, store.ErrNotFound
	}
	return *doc, nil
}

func (f *fakeStorage) GetContent(ctx context.Context, id uuid.UUID) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	content, ok := f.content[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return content, nil
}

func (f *fakeStorage) SetStatus(ctx context.Context, id uuid.UUID, status, errorMessage string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return store.ErrNotFound
	}
	if doc.Status == "completed" || doc.Status == "error" {
		return store.ErrTerminal
	}
	doc.Status = status
	doc.ErrorMessage = errorMessage
	return nil
}

func (f *fakeStorage) SetFields(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return store.ErrNotFound
	}
	doc.Fields = fields
	return nil
}

func (f *fakeStorage) SaveProducts(ctx context.Context, id uuid.UUID, items []product.Item, summary string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return store.ErrNotFound
	}
	doc.Products = items
	doc.ProductSummary = summary
	return nil
}

func (f *fakeStorage) RecordFieldValue(ctx context.Context, fieldName, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.history = append(f.history, fieldName+"="+value)
	return nil
}

func (f *fakeStorage) FieldSuggestions(ctx context.Context, fieldName string, limit int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if limit < len(f.suggest) {
		return f.suggest[:limit], nil
	}
	return f.suggest, nil
}

func testServer(st Storage) *Server {
	return NewServer(st, &config.Config{
		Upload: config.UploadConfig{
			MaxFileSize:       1 << 20,
			AllowedExtensions: []string{".pdf", ".txt"},
		},
		Session: config.SessionConfig{ProcessTimeout: time.Second},
	})
}

func multipartBody(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	part.Write([]byte(content))
	w.Close()
	return &body, w.FormDataContentType()
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestHandleUpload(t *testing.T) {
	st := newFakeStorage()
	srv := testServer(st)

	body, contentType := multipartBody(t, "invoice.txt", "PAVADZĪME Nr. 0715/25")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	got := decodeBody(t, rec)
	if got["status"] != "uploaded" || got["filename"] != "invoice.txt" {
		t.Errorf("response = %v", got)
	}
	if got["document_id"] == "" {
		t.Error("missing document_id")
	}
}

func TestHandleUpload_RejectsExtension(t *testing.T) {
	srv := testServer(newFakeStorage())

	body, contentType := multipartBody(t, "malware.exe", "xx")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleProcess(t *testing.T) {
	st := newFakeStorage()
	srv := testServer(st)
	doc, _ := st.CreateDocument(context.Background(), "invoice.txt", []byte("Invoice No: INV-001\nKopā: 31,46 EUR"))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/process/"+doc.ID.String(), nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}

	// The background worker settles the document in a terminal state.
	deadline := time.After(2 * time.Second)
	for {
		got, _ := st.GetDocument(context.Background(), doc.ID)
		if got.Status == "completed" {
			if got.Fields["document_number"] != "INV-001" {
				t.Errorf("fields = %v", got.Fields)
			}
			return
		}
		select {
		case <-deadline:
			t.Fatalf("document never completed, status %q", got.Status)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestHandleProcess_TerminalConflict(t *testing.T) {
	st := newFakeStorage()
	srv := testServer(st)
	doc, _ := st.CreateDocument(context.Background(), "invoice.txt", []byte("x"))
	st.docs[doc.ID].Status = "completed"

	req := httptest.NewRequest(http.MethodPost, "/api/v1/process/"+doc.ID.String(), nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestHandleStatus_NotFound(t *testing.T) {
	srv := testServer(newFakeStorage())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/process/"+uuid.NewString()+"/status", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	if got := decodeBody(t, rec); got["error"] == "" {
		t.Error("missing error message")
	}
}

func TestHandleUpdateFields(t *testing.T) {
	st := newFakeStorage()
	srv := testServer(st)
	doc, _ := st.CreateDocument(context.Background(), "invoice.txt", []byte("x"))
	st.docs[doc.ID].Fields = map[string]any{"document_number": "INV-001", "currency": "EUR"}

	payload, _ := json.Marshal(map[string]any{"document_number": "INV-002", "currency": "EUR"})
	req := httptest.NewRequest(http.MethodPut, "/api/v1/update/"+doc.ID.String(), bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	got := decodeBody(t, rec)
	if got["status"] != "success" {
		t.Errorf("status = %v", got["status"])
	}
	updated, _ := got["updated_fields"].([]any)
	if len(updated) != 1 || updated[0] != "document_number" {
		t.Errorf("updated_fields = %v", updated)
	}
	// Confirmed values ride at the top level of the response.
	if got["document_number"] != "INV-002" {
		t.Errorf("document_number = %v", got["document_number"])
	}

	// Only the changed value feeds the suggestion history.
	if len(st.history) != 1 || st.history[0] != "document_number=INV-002" {
		t.Errorf("history = %v", st.history)
	}
}

func TestHandleProductConfig(t *testing.T) {
	srv := testServer(newFakeStorage())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/config", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	var cfg product.SchemaConfig
	if err := json.Unmarshal(rec.Body.Bytes(), &cfg); err != nil {
		t.Fatal(err)
	}
	if len(cfg.DocumentTypes) == 0 || len(cfg.BaseFields) == 0 {
		t.Errorf("config = %+v", cfg)
	}
}

func TestHandleGetProducts_EmptyBatch(t *testing.T) {
	st := newFakeStorage()
	srv := testServer(st)
	doc, _ := st.CreateDocument(context.Background(), "invoice.txt", []byte("x"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/"+doc.ID.String(), nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), `"products":null`) {
		t.Error("products must encode as an empty array, not null")
	}
}

func TestHandleUpdateProducts(t *testing.T) {
	st := newFakeStorage()
	srv := testServer(st)
	doc, _ := st.CreateDocument(context.Background(), "invoice.txt", []byte("x"))

	payload, _ := json.Marshal(product.SaveRequest{
		DocumentID:   doc.ID.String(),
		DocumentType: "invoice",
		Products: []product.Item{{
			"product_name": "Cement",
			"quantity":     2.0,
			"unit_price":   5.5,
			"total_price":  999.0, // server recomputes
		}},
	})
	req := httptest.NewRequest(http.MethodPut, "/api/v1/products/update", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var result product.SaveResult
	json.Unmarshal(rec.Body.Bytes(), &result)
	if !result.Success || result.TotalProducts != 1 {
		t.Errorf("result = %+v", result)
	}
	if result.Products[0]["total_price"] != 11.0 {
		t.Errorf("total_price = %v, want recomputed 11.0", result.Products[0]["total_price"])
	}

	stored, _ := st.GetDocument(context.Background(), doc.ID)
	if len(stored.Products) != 1 || stored.ProductSummary == "" {
		t.Errorf("stored = %+v", stored)
	}
}

func TestHandleUpdateProducts_ValidationRejectsBatch(t *testing.T) {
	st := newFakeStorage()
	srv := testServer(st)
	doc, _ := st.CreateDocument(context.Background(), "invoice.txt", []byte("x"))

	// No product_name, a string where a number belongs, and an unknown
	// column: three distinct validation categories in one item.
	payload := []byte(`{"document_id":"` + doc.ID.String() + `","document_type":"invoice",` +
		`"products":[{"quantity":"two","unit_price":2,"total_price":2,"mystery":1}]}`)
	req := httptest.NewRequest(http.MethodPut, "/api/v1/products/update", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var result product.SaveResult
	json.Unmarshal(rec.Body.Bytes(), &result)
	if result.Success || len(result.Errors) == 0 {
		t.Errorf("result = %+v", result)
	}

	// Nothing was stored.
	stored, _ := st.GetDocument(context.Background(), doc.ID)
	if stored.Products != nil {
		t.Errorf("stored products = %v, want none", stored.Products)
	}
}

func TestHandleSuggestions(t *testing.T) {
	st := newFakeStorage()
	st.suggest = []string{"SIA Alfa", "SIA Beta", "SIA Citi"}
	srv := testServer(st)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/field-suggestions/supplier_name?limit=2", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	got := decodeBody(t, rec)
	suggestions, _ := got["suggestions"].([]any)
	if len(suggestions) != 2 {
		t.Errorf("suggestions = %v, want 2 entries", suggestions)
	}
}

func TestHandleSuggestions_EmptyIsArray(t *testing.T) {
	srv := testServer(newFakeStorage())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/field-suggestions/supplier_name", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if strings.Contains(rec.Body.String(), `"suggestions":null`) {
		t.Error("suggestions must encode as an empty array, not null")
	}
}

func TestUserMessage_Hides5xxDetail(t *testing.T) {
	err := errors.New("pgx: connection refused host=10.0.0.1")
	if got := userMessage(err, http.StatusInternalServerError); got != "internal server error" {
		t.Errorf("userMessage = %q", got)
	}
	if got := userMessage(err, http.StatusBadRequest); got == "internal server error" {
		t.Error("4xx detail should pass through")
	}
}
