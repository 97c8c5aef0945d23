package product

import (
	"fmt"
	"strconv"
	"strings"
)

// Item is a single line item. Keys follow the schema field names for the
// document type; values are normalized to the field's declared type.
type Item map[string]any

// Normalize cleans a batch of items against the schema for a document
// type. Unknown fields are dropped, values are coerced to their declared
// type, and required base fields missing from an item receive a type
// default. total_price is always recomputed from quantity and unit_price.
func Normalize(items []Item, documentType string, schema SchemaConfig) []Item {
	index := schema.FieldIndex(documentType)

	normalized := make([]Item, 0, len(items))
	for _, item := range items {
		out := make(Item, len(item))
		for key, value := range item {
			field, ok := index[key]
			if !ok {
				continue
			}
			if v, ok := normalizeValue(value, field.Type); ok {
				out[key] = v
			}
		}
		for _, field := range schema.RequiredBase() {
			if _, ok := out[field.Name]; !ok {
				out[field.Name] = defaultValue(field.Type)
			}
		}
		out["total_price"] = Total(out["quantity"], out["unit_price"])
		normalized = append(normalized, out)
	}
	return normalized
}

// Total computes the authoritative line total from quantity and unit price.
func Total(quantity, unitPrice any) float64 {
	q, _ := toFloat(quantity)
	up, _ := toFloat(unitPrice)
	return q * up
}

// Validate checks a batch of items against the schema for a document type.
// The result maps error category to messages, each prefixed with the
// 1-based item number. An empty map means the batch is valid.
func Validate(items []Item, documentType string, schema SchemaConfig) map[string][]string {
	index := schema.FieldIndex(documentType)
	errs := make(map[string][]string)

	for i, item := range items {
		for _, field := range schema.FieldsFor(documentType) {
			if !field.Required {
				continue
			}
			if _, ok := item[field.Name]; !ok {
				errs["missing_required"] = append(errs["missing_required"],
					fmt.Sprintf("Product %d: %s", i+1, field.Name))
			}
		}
		for key, value := range item {
			field, ok := index[key]
			if !ok {
				errs["unknown_fields"] = append(errs["unknown_fields"],
					fmt.Sprintf("Product %d: %s", i+1, key))
				continue
			}
			if !validType(value, field.Type) {
				errs["invalid_types"] = append(errs["invalid_types"],
					fmt.Sprintf("Product %d: %s: expected %s", i+1, key, field.Type))
			}
		}
	}
	return errs
}

// Summary renders a one-line description of a batch: item count, summed
// total and the first few item names.
func Summary(items []Item) string {
	if len(items) == 0 {
		return "No products"
	}

	var total float64
	names := make([]string, 0, len(items))
	for _, item := range items {
		name, _ := item["product_name"].(string)
		if name == "" {
			name = "Unknown product"
		}
		quantity, _ := toFloat(item["quantity"])
		unit, _ := item["unit"].(string)
		if unit == "" {
			unit = "pcs"
		}
		if price, ok := toFloat(item["total_price"]); ok {
			total += price
		}
		names = append(names, fmt.Sprintf("%s (%s %s)", name, trimFloat(quantity), unit))
	}

	shown := names
	if len(shown) > 3 {
		shown = shown[:3]
	}
	parts := []string{
		fmt.Sprintf("Products: %d", len(items)),
		fmt.Sprintf("Total: %.2f", total),
		"Items: " + strings.Join(shown, ", "),
	}
	if len(names) > 3 {
		parts = append(parts, fmt.Sprintf("and %d more", len(names)-3))
	}
	return strings.Join(parts, " | ")
}

// normalizeValue coerces a raw value to the field type. Empty and nil
// values are dropped. Number strings may carry currency symbols, spaces
// and a decimal comma.
func normalizeValue(value any, fieldType FieldType) (any, bool) {
	if value == nil || value == "" {
		return nil, false
	}

	switch fieldType {
	case FieldNumber:
		if f, ok := toFloat(value); ok {
			return f, true
		}
		return nil, false
	case FieldString:
		return strings.TrimSpace(fmt.Sprint(value)), true
	case FieldBoolean:
		switch v := value.(type) {
		case bool:
			return v, true
		case string:
			switch strings.ToLower(v) {
			case "true", "1", "yes":
				return true, true
			}
			return false, true
		}
		return nil, false
	}
	return value, true
}

func defaultValue(fieldType FieldType) any {
	switch fieldType {
	case FieldString:
		return ""
	case FieldNumber:
		return 0.0
	case FieldBoolean:
		return false
	}
	return nil
}

func validType(value any, fieldType FieldType) bool {
	if value == nil {
		return true
	}
	switch fieldType {
	case FieldString:
		_, ok := value.(string)
		return ok
	case FieldNumber:
		switch value.(type) {
		case float64, float32, int, int32, int64:
			return true
		}
		return false
	case FieldBoolean:
		_, ok := value.(bool)
		return ok
	}
	return true
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		clean := strings.NewReplacer("€", "", "$", "", " ", "", ",", ".").Replace(v)
		f, err := strconv.ParseFloat(clean, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func trimFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
