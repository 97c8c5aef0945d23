package product

import (
	"fmt"
	"sort"
	"sync"
)

var (
	registry   = make(map[string][]Field)
	registryMu sync.RWMutex
)

// RegisterType adds document-specific line-item fields to the registry.
// Panics if the document type is already registered.
func RegisterType(documentType string, fields []Field) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[documentType]; exists {
		panic(fmt.Sprintf("document type already registered: %s", documentType))
	}
	registry[documentType] = fields
}

// TypeFields returns the document-specific fields for a type.
// Returns false if the type is not registered.
func TypeFields(documentType string) ([]Field, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	fields, ok := registry[documentType]
	return fields, ok
}

// Types returns all registered document types in sorted order.
func Types() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	types := make([]string, 0, len(registry))
	for t := range registry {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// BaseFields are the columns every line item carries regardless of
// document type. total_price is recomputed from quantity and unit_price,
// never trusted from input.
var BaseFields = []Field{
	{Name: "product_name", Type: FieldString, Required: true, Description: "Product or service name"},
	{Name: "quantity", Type: FieldNumber, Required: true, Description: "Quantity"},
	{Name: "unit_price", Type: FieldNumber, Required: true, Description: "Price per unit"},
	{Name: "total_price", Type: FieldNumber, Required: true, Description: "Line total"},
}

// OptionalFields are offered for every document type but never required.
var OptionalFields = []Field{
	{Name: "unit", Type: FieldString, Description: "Unit of measurement"},
	{Name: "description", Type: FieldString, Description: "Additional description"},
	{Name: "product_code", Type: FieldString, Description: "Product code or SKU"},
}

func init() {
	RegisterType("invoice", []Field{
		{Name: "discount", Type: FieldNumber, Description: "Discount amount"},
		{Name: "vat_rate", Type: FieldNumber, Description: "VAT rate percentage"},
		{Name: "vat_amount", Type: FieldNumber, Description: "VAT amount"},
	})
	RegisterType("receipt", []Field{
		{Name: "payment_method", Type: FieldString, Description: "Payment method"},
	})
	RegisterType("delivery_note", []Field{
		{Name: "batch_number", Type: FieldString, Description: "Batch number"},
		{Name: "delivery_date", Type: FieldString, Description: "Delivery date"},
	})
	RegisterType("credit_note", []Field{
		{Name: "original_invoice", Type: FieldString, Description: "Referenced invoice number"},
		{Name: "credit_reason", Type: FieldString, Description: "Reason for the credit"},
	})
}

// DefaultConfig builds the schema configuration from the registry.
func DefaultConfig() SchemaConfig {
	types := Types()
	specific := make(map[string][]Field, len(types))
	for _, t := range types {
		fields, _ := TypeFields(t)
		specific[t] = fields
	}
	return SchemaConfig{
		DocumentTypes:    types,
		BaseFields:       BaseFields,
		OptionalFields:   OptionalFields,
		DocumentSpecific: specific,
	}
}
