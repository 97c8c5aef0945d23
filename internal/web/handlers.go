package web

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"invoiceflow/internal/extract"
	"invoiceflow/internal/product"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleUpload accepts a multipart document upload and stores it as a new
// document in the uploaded state.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.upload.MaxFileSize)
	if err := r.ParseMultipartForm(s.upload.MaxFileSize); err != nil {
		s.respondError(w, r, fmt.Errorf("parse upload: %w", err), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, r, fmt.Errorf("missing file field: %w", err), http.StatusBadRequest)
		return
	}
	defer file.Close()

	if !s.allowedExtension(header.Filename) {
		s.respondError(w, r,
			fmt.Errorf("unsupported file type: %s", filepath.Ext(header.Filename)),
			http.StatusBadRequest)
		return
	}

	content, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, r, fmt.Errorf("read upload: %w", err), http.StatusBadRequest)
		return
	}

	doc, err := s.store.CreateDocument(r.Context(), header.Filename, content)
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"document_id": doc.ID.String(),
		"filename":    doc.Filename,
		"file_size":   len(content),
		"status":      doc.Status,
	})
}

// handleProcess moves a document into the processing state and starts
// extraction in the background.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	id, err := documentID(r)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	if err := s.store.SetStatus(r.Context(), id, "processing", ""); err != nil {
		s.respondError(w, r, err, statusForStoreError(err))
		return
	}

	go s.processDocument(id)

	respondJSON(w, http.StatusOK, map[string]string{
		"document_id": id.String(),
		"status":      "processing",
	})
}

// processDocument extracts fields from the stored document bytes and
// settles the document in a terminal state. It runs detached from the
// request that started it.
func (s *Server) processDocument(id uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), s.processTimeout)
	defer cancel()

	content, err := s.store.GetContent(ctx, id)
	if err != nil {
		s.failDocument(ctx, id, err)
		return
	}

	fields := extract.Fields(string(content))
	if err := s.store.SetFields(ctx, id, fields); err != nil {
		s.failDocument(ctx, id, err)
		return
	}
	if err := s.store.SetStatus(ctx, id, "completed", ""); err != nil {
		slog.Error("complete document", "document_id", id, "error", err)
	}
}

func (s *Server) failDocument(ctx context.Context, id uuid.UUID, cause error) {
	slog.Error("process document", "document_id", id, "error", cause)
	if err := s.store.SetStatus(ctx, id, "error", cause.Error()); err != nil {
		slog.Error("mark document failed", "document_id", id, "error", err)
	}
}

// handleStatus reports the current processing state of a document,
// including the extracted fields once available.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id, err := documentID(r)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	doc, err := s.store.GetDocument(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err, statusForStoreError(err))
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"document_id":   doc.ID.String(),
		"filename":      doc.Filename,
		"status":        doc.Status,
		"error_message": doc.ErrorMessage,
		"fields":        doc.Fields,
	})
}

// handleUpdateFields replaces the whole field map of a document. The
// response lists which fields actually changed and echoes the stored
// values at the top level. Changed values feed the suggestion history.
func (s *Server) handleUpdateFields(w http.ResponseWriter, r *http.Request) {
	id, err := documentID(r)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	var fields map[string]any
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		s.respondError(w, r, fmt.Errorf("decode fields: %w", err), http.StatusBadRequest)
		return
	}

	doc, err := s.store.GetDocument(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err, statusForStoreError(err))
		return
	}

	updated := changedKeys(doc.Fields, fields)
	if err := s.store.SetFields(r.Context(), id, fields); err != nil {
		s.respondError(w, r, err, statusForStoreError(err))
		return
	}

	for _, key := range updated {
		if value, ok := fields[key].(string); ok {
			if err := s.store.RecordFieldValue(r.Context(), key, value); err != nil {
				slog.Error("record field value", "field", key, "error", err)
			}
		}
	}

	response := map[string]any{
		"status":         "success",
		"updated_fields": updated,
	}
	for key, value := range fields {
		response[key] = value
	}
	respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleProductConfig(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, product.DefaultConfig())
}

func (s *Server) handleGetProducts(w http.ResponseWriter, r *http.Request) {
	id, err := documentID(r)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	doc, err := s.store.GetDocument(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err, statusForStoreError(err))
		return
	}

	products := doc.Products
	if products == nil {
		products = []product.Item{}
	}
	respondJSON(w, http.StatusOK, product.LoadResult{
		Success:  true,
		Products: products,
		Summary:  doc.ProductSummary,
	})
}

// handleUpdateProducts validates and saves a whole line-item batch.
// A batch that fails validation is rejected as a unit; nothing is stored.
func (s *Server) handleUpdateProducts(w http.ResponseWriter, r *http.Request) {
	var req product.SaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, r, fmt.Errorf("decode products: %w", err), http.StatusBadRequest)
		return
	}
	id, err := uuid.Parse(req.DocumentID)
	if err != nil {
		s.respondError(w, r, fmt.Errorf("invalid document id: %w", err), http.StatusBadRequest)
		return
	}
	if req.DocumentType == "" {
		req.DocumentType = "invoice"
	}

	// Validation sees the batch as submitted; normalization only runs on
	// an accepted batch.
	schema := product.DefaultConfig()
	if errs := product.Validate(req.Products, req.DocumentType, schema); len(errs) > 0 {
		respondJSON(w, http.StatusUnprocessableEntity, product.SaveResult{
			Success: false,
			Message: "validation failed",
			Errors:  errs,
		})
		return
	}

	normalized := product.Normalize(req.Products, req.DocumentType, schema)
	summary := product.Summary(normalized)
	if err := s.store.SaveProducts(r.Context(), id, normalized, summary); err != nil {
		s.respondError(w, r, err, statusForStoreError(err))
		return
	}

	respondJSON(w, http.StatusOK, product.SaveResult{
		Success:       true,
		Message:       "products saved",
		Products:      normalized,
		TotalProducts: len(normalized),
		Summary:       summary,
	})
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	fieldName := chi.URLParam(r, "fieldName")
	limit := parseIntParam(r, "limit", 10)
	if limit > 50 {
		limit = 50
	}

	suggestions, err := s.store.FieldSuggestions(r.Context(), fieldName, limit)
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	if suggestions == nil {
		suggestions = []string{}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"field_name":  fieldName,
		"suggestions": suggestions,
	})
}

func (s *Server) allowedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, allowed := range s.upload.AllowedExtensions {
		if ext == strings.ToLower(allowed) {
			return true
		}
	}
	return false
}

func documentID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "documentID"))
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("invalid document id: %w", err)
	}
	return id, nil
}

// changedKeys lists, in sorted order, the keys whose values differ
// between the stored and submitted maps, including removed keys.
func changedKeys(stored, submitted map[string]any) []string {
	keys := make([]string, 0, len(submitted))
	for key, value := range submitted {
		if old, ok := stored[key]; !ok || fmt.Sprint(old) != fmt.Sprint(value) {
			keys = append(keys, key)
		}
	}
	for key := range stored {
		if _, ok := submitted[key]; !ok {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("encode response", "error", err)
	}
}
