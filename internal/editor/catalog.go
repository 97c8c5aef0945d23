// Package editor holds the flat invoice field set: a server-confirmed
// baseline, a working copy while editing, and the diff between them.
package editor

// FieldKind is the input type of a flat field.
type FieldKind string

const (
	KindText      FieldKind = "text"
	KindNumber    FieldKind = "number"
	KindDate      FieldKind = "date"
	KindMultiline FieldKind = "multiline"
)

// Field describes one editable flat field.
// Required is advisory only: it drives visual hints, never blocks a save.
// Authoritative validation is server-side.
type Field struct {
	Key      string
	Label    string
	Kind     FieldKind
	Section  string
	Required bool
}

// Section keys, in display order.
const (
	SectionDocument      = "document"
	SectionSupplier      = "supplier"
	SectionSupplierBanks = "supplier_banks"
	SectionRecipient     = "recipient"
	SectionTransport     = "transport"
	SectionTransaction   = "transaction"
	SectionFinancial     = "financial"
	SectionAdditional    = "additional"
)

// Sections lists the fixed section keys in display order.
var Sections = []string{
	SectionDocument,
	SectionSupplier,
	SectionSupplierBanks,
	SectionRecipient,
	SectionTransport,
	SectionTransaction,
	SectionFinancial,
	SectionAdditional,
}

// SectionTitles maps section keys to display titles.
var SectionTitles = map[string]string{
	SectionDocument:      "Document information",
	SectionSupplier:      "Supplier information",
	SectionSupplierBanks: "Additional supplier banks",
	SectionRecipient:     "Recipient information",
	SectionTransport:     "Transport information",
	SectionTransaction:   "Transaction information",
	SectionFinancial:     "Financial information",
	SectionAdditional:    "Additional information",
}

// catalog is the full editable field set, in render order.
var catalog = []Field{
	{Key: "document_type", Label: "Document type", Kind: KindText, Section: SectionDocument},
	{Key: "document_series", Label: "Document series", Kind: KindText, Section: SectionDocument},
	{Key: "document_number", Label: "Document number", Kind: KindText, Section: SectionDocument, Required: true},
	{Key: "invoice_date", Label: "Issue date", Kind: KindDate, Section: SectionDocument},
	{Key: "delivery_date", Label: "Delivery date", Kind: KindDate, Section: SectionDocument},
	{Key: "contract_number", Label: "Contract number", Kind: KindText, Section: SectionDocument},

	{Key: "supplier_name", Label: "Supplier name", Kind: KindText, Section: SectionSupplier, Required: true},
	{Key: "supplier_registration_number", Label: "Supplier reg. number", Kind: KindText, Section: SectionSupplier},
	{Key: "supplier_vat_number", Label: "Supplier VAT number", Kind: KindText, Section: SectionSupplier},
	{Key: "supplier_legal_address", Label: "Supplier legal address", Kind: KindText, Section: SectionSupplier},
	{Key: "supplier_bank_name", Label: "Supplier bank", Kind: KindText, Section: SectionSupplier},
	{Key: "supplier_account_number", Label: "Supplier account", Kind: KindText, Section: SectionSupplier},
	{Key: "supplier_swift_code", Label: "Supplier SWIFT", Kind: KindText, Section: SectionSupplier},

	{Key: "supplier_bank_name_1", Label: "Supplier bank 2", Kind: KindText, Section: SectionSupplierBanks},
	{Key: "supplier_account_number_1", Label: "Supplier account 2", Kind: KindText, Section: SectionSupplierBanks},
	{Key: "supplier_swift_code_1", Label: "Supplier SWIFT 2", Kind: KindText, Section: SectionSupplierBanks},
	{Key: "supplier_bank_name_2", Label: "Supplier bank 3", Kind: KindText, Section: SectionSupplierBanks},
	{Key: "supplier_account_number_2", Label: "Supplier account 3", Kind: KindText, Section: SectionSupplierBanks},
	{Key: "supplier_swift_code_2", Label: "Supplier SWIFT 3", Kind: KindText, Section: SectionSupplierBanks},

	{Key: "recipient_name", Label: "Recipient name", Kind: KindText, Section: SectionRecipient},
	{Key: "recipient_registration_number", Label: "Recipient reg. number", Kind: KindText, Section: SectionRecipient},
	{Key: "recipient_vat_number", Label: "Recipient VAT number", Kind: KindText, Section: SectionRecipient},
	{Key: "recipient_legal_address", Label: "Recipient legal address", Kind: KindText, Section: SectionRecipient},
	{Key: "recipient_bank_name", Label: "Recipient bank", Kind: KindText, Section: SectionRecipient},
	{Key: "recipient_account_number", Label: "Recipient account", Kind: KindText, Section: SectionRecipient},
	{Key: "recipient_swift_code", Label: "Recipient SWIFT", Kind: KindText, Section: SectionRecipient},

	{Key: "carrier_name", Label: "Carrier name", Kind: KindText, Section: SectionTransport},
	{Key: "vehicle_number", Label: "Vehicle number", Kind: KindText, Section: SectionTransport},
	{Key: "driver_name", Label: "Driver name", Kind: KindText, Section: SectionTransport},

	{Key: "transaction_type", Label: "Transaction type", Kind: KindText, Section: SectionTransaction},
	{Key: "service_period", Label: "Service period", Kind: KindText, Section: SectionTransaction},
	{Key: "payment_method", Label: "Payment method", Kind: KindText, Section: SectionTransaction},
	{Key: "notes", Label: "Notes", Kind: KindMultiline, Section: SectionTransaction},

	{Key: "currency", Label: "Currency", Kind: KindText, Section: SectionFinancial},
	{Key: "discount", Label: "Discount", Kind: KindNumber, Section: SectionFinancial},
	{Key: "amount_without_vat", Label: "Amount without VAT", Kind: KindNumber, Section: SectionFinancial},
	{Key: "vat_amount", Label: "VAT amount", Kind: KindNumber, Section: SectionFinancial},
	{Key: "total_amount", Label: "Total amount", Kind: KindNumber, Section: SectionFinancial},

	{Key: "issued_by_name", Label: "Issued by", Kind: KindText, Section: SectionAdditional},
	{Key: "payment_due_date", Label: "Payment due date", Kind: KindDate, Section: SectionAdditional},
	{Key: "total_quantity", Label: "Total quantity", Kind: KindNumber, Section: SectionAdditional},
	{Key: "weight_kg", Label: "Weight (kg)", Kind: KindNumber, Section: SectionAdditional},
	{Key: "page_number", Label: "Page number", Kind: KindText, Section: SectionAdditional},
}

// Catalog returns the full editable field set in render order.
func Catalog() []Field {
	out := make([]Field, len(catalog))
	copy(out, catalog)
	return out
}

// FieldsBySection groups the catalog by section, preserving order
// within each section.
func FieldsBySection() map[string][]Field {
	out := make(map[string][]Field, len(Sections))
	for _, f := range catalog {
		out[f.Section] = append(out[f.Section], f)
	}
	return out
}

// RequiredKeys returns the keys of the advisory required fields.
func RequiredKeys() []string {
	var keys []string
	for _, f := range catalog {
		if f.Required {
			keys = append(keys, f.Key)
		}
	}
	return keys
}

// Lookup returns the catalog entry for a field key.
func Lookup(key string) (Field, bool) {
	for _, f := range catalog {
		if f.Key == key {
			return f, true
		}
	}
	return Field{}, false
}
