package product

// FieldType identifies how a line-item field value is typed and normalized.
type FieldType string

const (
	FieldString  FieldType = "string"
	FieldNumber  FieldType = "number"
	FieldBoolean FieldType = "boolean"
)

// Field describes one line-item column for a document type.
type Field struct {
	Name        string    `json:"name"`
	Type        FieldType `json:"type"`
	Required    bool      `json:"required"`
	Description string    `json:"description,omitempty"`
}

// SchemaConfig is the full line-item field configuration served to clients.
// Base fields apply to every document type, optional fields are always
// offered, and document-specific fields extend the set per type.
type SchemaConfig struct {
	DocumentTypes    []string           `json:"document_types"`
	BaseFields       []Field            `json:"base_fields"`
	OptionalFields   []Field            `json:"optional_fields"`
	DocumentSpecific map[string][]Field `json:"document_specific_fields"`
}

// FieldsFor returns the complete field set for a document type. The result
// is purely additive: base fields first, then optional, then type-specific.
// An unknown document type yields base plus optional fields only.
func (c SchemaConfig) FieldsFor(documentType string) []Field {
	fields := make([]Field, 0, len(c.BaseFields)+len(c.OptionalFields))
	fields = append(fields, c.BaseFields...)
	fields = append(fields, c.OptionalFields...)
	fields = append(fields, c.DocumentSpecific[documentType]...)
	return fields
}

// FieldIndex returns the field set for a document type keyed by name.
func (c SchemaConfig) FieldIndex(documentType string) map[string]Field {
	fields := c.FieldsFor(documentType)
	index := make(map[string]Field, len(fields))
	for _, f := range fields {
		index[f.Name] = f
	}
	return index
}

// RequiredBase returns the base fields every item must carry.
func (c SchemaConfig) RequiredBase() []Field {
	var required []Field
	for _, f := range c.BaseFields {
		if f.Required {
			required = append(required, f)
		}
	}
	return required
}

// Supports reports whether the document type has its own field section.
func (c SchemaConfig) Supports(documentType string) bool {
	_, ok := c.DocumentSpecific[documentType]
	return ok
}
