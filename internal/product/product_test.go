package product

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestFieldsFor_Additive(t *testing.T) {
	cfg := DefaultConfig()

	base := len(cfg.BaseFields) + len(cfg.OptionalFields)
	invoice := cfg.FieldsFor("invoice")
	if len(invoice) != base+len(cfg.DocumentSpecific["invoice"]) {
		t.Errorf("invoice fields = %d, want base+optional+specific", len(invoice))
	}

	// An unknown type still gets the shared fields.
	unknown := cfg.FieldsFor("purchase_order")
	if len(unknown) != base {
		t.Errorf("unknown type fields = %d, want %d", len(unknown), base)
	}

	// Shared fields lead the slice in declaration order.
	if invoice[0].Name != "product_name" {
		t.Errorf("first field = %q, want product_name", invoice[0].Name)
	}

	receipt := cfg.FieldsFor("receipt")
	if reflect.DeepEqual(invoice, receipt) {
		t.Error("invoice and receipt field sets should differ")
	}
}

func TestDefaultConfig_Types(t *testing.T) {
	cfg := DefaultConfig()

	want := []string{"credit_note", "delivery_note", "invoice", "receipt"}
	if !reflect.DeepEqual(cfg.DocumentTypes, want) {
		t.Errorf("DocumentTypes = %v, want %v", cfg.DocumentTypes, want)
	}
	if !cfg.Supports("invoice") {
		t.Error("Supports(invoice) = false")
	}
	if cfg.Supports("purchase_order") {
		t.Error("Supports(purchase_order) = true")
	}
}

func TestNormalize(t *testing.T) {
	cfg := DefaultConfig()

	items := []Item{{
		"product_name": "  Cement 25kg  ",
		"quantity":     "2",
		"unit_price":   "€ 5,50",
		"total_price":  999.0, // ignored, recomputed
		"vat_rate":     21,
		"color":        "grey", // not in schema
	}}

	got := Normalize(items, "invoice", cfg)
	if len(got) != 1 {
		t.Fatalf("normalized %d items, want 1", len(got))
	}
	item := got[0]

	if item["product_name"] != "Cement 25kg" {
		t.Errorf("product_name = %q", item["product_name"])
	}
	if item["quantity"] != 2.0 {
		t.Errorf("quantity = %v, want 2.0", item["quantity"])
	}
	if item["unit_price"] != 5.5 {
		t.Errorf("unit_price = %v, want 5.5 after currency strip", item["unit_price"])
	}
	if item["total_price"] != 11.0 {
		t.Errorf("total_price = %v, want recomputed 11.0", item["total_price"])
	}
	if item["vat_rate"] != 21.0 {
		t.Errorf("vat_rate = %v, want 21.0", item["vat_rate"])
	}
	if _, ok := item["color"]; ok {
		t.Error("unknown field survived normalization")
	}
}

func TestNormalize_FillsRequiredDefaults(t *testing.T) {
	got := Normalize([]Item{{"unit": "kg"}}, "invoice", DefaultConfig())

	item := got[0]
	if item["product_name"] != "" {
		t.Errorf("product_name default = %v, want empty string", item["product_name"])
	}
	if item["quantity"] != 0.0 || item["unit_price"] != 0.0 || item["total_price"] != 0.0 {
		t.Errorf("numeric defaults = %v/%v/%v, want zeros",
			item["quantity"], item["unit_price"], item["total_price"])
	}
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()

	errs := Validate([]Item{
		{"product_name": "Valid", "quantity": 1.0, "unit_price": 2.0, "total_price": 2.0},
		{"quantity": "two", "mystery": true},
	}, "invoice", cfg)

	if len(errs["missing_required"]) == 0 {
		t.Error("expected missing_required errors")
	}
	for _, msg := range errs["missing_required"] {
		if !strings.HasPrefix(msg, "Product 2:") {
			t.Errorf("missing_required %q should point at item 2", msg)
		}
	}
	if got := errs["invalid_types"]; len(got) != 1 || !strings.Contains(got[0], "quantity") {
		t.Errorf("invalid_types = %v", got)
	}
	if got := errs["unknown_fields"]; len(got) != 1 || !strings.Contains(got[0], "mystery") {
		t.Errorf("unknown_fields = %v", got)
	}

	valid := Validate([]Item{
		{"product_name": "Valid", "quantity": 1.0, "unit_price": 2.0, "total_price": 2.0},
	}, "invoice", cfg)
	if len(valid) != 0 {
		t.Errorf("valid batch produced errors: %v", valid)
	}
}

func TestSummary(t *testing.T) {
	if got := Summary(nil); got != "No products" {
		t.Errorf("Summary(nil) = %q", got)
	}

	items := []Item{
		{"product_name": "Cement", "quantity": 2.0, "unit": "kg", "total_price": 11.0},
		{"product_name": "Sand", "quantity": 1.0, "total_price": 4.0},
		{"product_name": "Gravel", "quantity": 3.0, "total_price": 9.0},
		{"quantity": 1.0, "total_price": 1.0},
	}
	got := Summary(items)

	for _, want := range []string{
		"Products: 4",
		"Total: 25.00",
		"Cement (2 kg)",
		"Sand (1 pcs)",
		"and 1 more",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("Summary() = %q, missing %q", got, want)
		}
	}
	if strings.Contains(got, "Unknown product") {
		t.Errorf("Summary() = %q, fourth item should be truncated away", got)
	}
}

type fakeLoader struct {
	cfg   SchemaConfig
	err   error
	calls int
}

func (f *fakeLoader) ProductConfig(ctx context.Context) (SchemaConfig, error) {
	f.calls++
	return f.cfg, f.err
}

type fakeProductClient struct {
	mu       sync.Mutex
	load     LoadResult
	loadErr  error
	save     SaveResult
	saveErr  error
	saveReqs []SaveRequest
	block    chan struct{}
}

func (f *fakeProductClient) Products(ctx context.Context, documentID string) (LoadResult, error) {
	return f.load, f.loadErr
}

func (f *fakeProductClient) SaveProducts(ctx context.Context, req SaveRequest) (SaveResult, error) {
	f.mu.Lock()
	f.saveReqs = append(f.saveReqs, req)
	block := f.block
	f.mu.Unlock()

	if block != nil {
		<-block
	}
	return f.save, f.saveErr
}

func TestManager_AddSetRecompute(t *testing.T) {
	m := NewManager("doc-1", "invoice", &fakeLoader{cfg: DefaultConfig()}, &fakeProductClient{})

	m.Add()
	items := m.Items()
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1", len(items))
	}
	if items[0]["total_price"] != 0.0 {
		t.Errorf("new item total_price = %v, want 0.0", items[0]["total_price"])
	}

	if err := m.Set(0, "quantity", 2.0); err != nil {
		t.Fatal(err)
	}
	if err := m.Set(0, "unit_price", 5.5); err != nil {
		t.Fatal(err)
	}
	if got := m.Items()[0]["total_price"]; got != 11.0 {
		t.Errorf("total_price = %v, want 11.0", got)
	}

	// A hand-set total is overwritten by the next recompute.
	m.Set(0, "total_price", 999.0)
	m.Set(0, "quantity", 3.0)
	if got := m.Items()[0]["total_price"]; got != 16.5 {
		t.Errorf("total_price = %v, want 16.5", got)
	}
}

func TestManager_ItemIsolation(t *testing.T) {
	m := NewManager("doc-1", "invoice", &fakeLoader{cfg: DefaultConfig()}, &fakeProductClient{})
	m.Add()
	m.Add()

	m.Set(0, "product_name", "Cement")
	m.Set(1, "product_name", "Sand")
	m.Set(0, "quantity", 5.0)

	items := m.Items()
	if items[1]["product_name"] != "Sand" || items[1]["quantity"] != 0.0 {
		t.Errorf("edit leaked into second item: %v", items[1])
	}

	// Items returns copies, not aliases.
	items[0]["product_name"] = "Mutated"
	if m.Items()[0]["product_name"] != "Cement" {
		t.Error("external mutation reached the managed batch")
	}
}

func TestManager_Remove(t *testing.T) {
	m := NewManager("doc-1", "invoice", &fakeLoader{cfg: DefaultConfig()}, &fakeProductClient{})
	m.Add()
	m.Add()
	m.Set(0, "product_name", "Cement")
	m.Set(1, "product_name", "Sand")

	if err := m.Remove(0); err != nil {
		t.Fatal(err)
	}
	items := m.Items()
	if len(items) != 1 || items[0]["product_name"] != "Sand" {
		t.Errorf("after remove: %v", items)
	}
	if err := m.Remove(5); err == nil {
		t.Error("Remove(5) expected error")
	}
}

func TestManager_SaveAllSuccess(t *testing.T) {
	client := &fakeProductClient{save: SaveResult{
		Success:       true,
		Products:      []Item{{"product_name": "Cement", "quantity": 2.0, "unit_price": 5.5, "total_price": 11.0}},
		TotalProducts: 1,
		Summary:       "Products: 1 | Total: 11.00 | Items: Cement (2 pcs)",
	}}
	m := NewManager("doc-1", "invoice", &fakeLoader{cfg: DefaultConfig()}, client)
	m.Add()
	m.Set(0, "product_name", "Cement")
	m.Set(0, "quantity", 2.0)
	m.Set(0, "unit_price", 5.5)

	result, err := m.SaveAll(context.Background())
	if err != nil {
		t.Fatalf("SaveAll() error = %v", err)
	}
	if !result.Success {
		t.Fatal("expected success")
	}

	if got := client.saveReqs[0]; got.DocumentID != "doc-1" || got.DocumentType != "invoice" || len(got.Products) != 1 {
		t.Errorf("save request = %+v", got)
	}
	if got := m.Summary(); !strings.HasPrefix(got, "Products: 1") {
		t.Errorf("Summary() = %q", got)
	}
	if m.Errors() != nil {
		t.Errorf("Errors() = %v, want nil", m.Errors())
	}
}

func TestManager_SaveAllRejectionKeepsEdits(t *testing.T) {
	client := &fakeProductClient{save: SaveResult{
		Success: false,
		Errors:  map[string][]string{"missing_required": {"Product 1: product_name"}},
	}}
	m := NewManager("doc-1", "invoice", &fakeLoader{cfg: DefaultConfig()}, client)
	m.Add()
	m.Set(0, "quantity", 2.0)

	result, err := m.SaveAll(context.Background())
	if err != nil {
		t.Fatalf("SaveAll() error = %v", err)
	}
	if result.Success {
		t.Fatal("expected rejection")
	}

	if got := m.Items(); len(got) != 1 || got[0]["quantity"] != 2.0 {
		t.Errorf("local edits lost on rejection: %v", got)
	}
	if got := m.Errors(); len(got["missing_required"]) != 1 {
		t.Errorf("Errors() = %v", got)
	}
}

func TestManager_SaveAllTransportFailureKeepsEdits(t *testing.T) {
	client := &fakeProductClient{saveErr: errors.New("connection refused")}
	m := NewManager("doc-1", "invoice", &fakeLoader{cfg: DefaultConfig()}, client)
	m.Add()
	m.Set(0, "product_name", "Cement")

	if _, err := m.SaveAll(context.Background()); err == nil {
		t.Fatal("SaveAll() expected error")
	}
	if got := m.Items(); got[0]["product_name"] != "Cement" {
		t.Errorf("local edits lost on transport failure: %v", got)
	}
	if m.Saving() {
		t.Error("saving flag stuck after failure")
	}
}

func TestManager_SaveAllInFlightGuard(t *testing.T) {
	client := &fakeProductClient{block: make(chan struct{}), save: SaveResult{Success: true}}
	m := NewManager("doc-1", "invoice", &fakeLoader{cfg: DefaultConfig()}, client)
	m.Add()

	done := make(chan error, 1)
	go func() {
		_, err := m.SaveAll(context.Background())
		done <- err
	}()

	deadline := time.After(time.Second)
	for !m.Saving() {
		select {
		case <-deadline:
			t.Fatal("first save never started")
		case <-time.After(time.Millisecond):
		}
	}
	if _, err := m.SaveAll(context.Background()); !errors.Is(err, ErrSaveInFlight) {
		t.Errorf("second SaveAll() error = %v, want ErrSaveInFlight", err)
	}

	close(client.block)
	if err := <-done; err != nil {
		t.Fatalf("first SaveAll() error = %v", err)
	}
}

func TestManager_FieldsDegradeOnConfigFailure(t *testing.T) {
	loader := &fakeLoader{err: errors.New("config unavailable")}
	m := NewManager("doc-1", "invoice", loader, &fakeProductClient{})

	if got := m.Fields(context.Background()); got != nil {
		t.Errorf("Fields() = %v, want nil on config failure", got)
	}

	// The next call retries the fetch.
	loader.err = nil
	loader.cfg = DefaultConfig()
	if got := m.Fields(context.Background()); len(got) == 0 {
		t.Error("Fields() empty after config recovered")
	}
	if loader.calls != 2 {
		t.Errorf("loader called %d times, want 2", loader.calls)
	}

	// A cached config is not refetched.
	m.Fields(context.Background())
	if loader.calls != 2 {
		t.Errorf("loader called %d times after cache, want 2", loader.calls)
	}
}

func TestManager_Load(t *testing.T) {
	client := &fakeProductClient{load: LoadResult{
		Success:  true,
		Products: []Item{{"product_name": "Cement", "quantity": 2.0}},
		Summary:  "Products: 1 | Total: 11.00 | Items: Cement (2 pcs)",
	}}
	m := NewManager("doc-1", "invoice", &fakeLoader{cfg: DefaultConfig()}, client)

	if err := m.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := m.Items(); len(got) != 1 || got[0]["product_name"] != "Cement" {
		t.Errorf("Items() = %v", got)
	}
}
