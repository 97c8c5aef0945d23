// Package extract pulls structured invoice fields out of raw document
// text. Each field has an ordered pattern list; the first match wins.
package extract

import (
	"regexp"
	"strconv"
	"strings"
)

var documentNumberPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?im)(?:pavadz[īi]me|invoice|dokuments?|r[eē][kķ]ins?)\s*(?:no|nr)\.?\s*:?\s*([A-Z0-9/-]+)`),
	regexp.MustCompile(`\b([A-Z]{2,}\d{7,})\b`),
	regexp.MustCompile(`\b(\d{8})\b`),
}

var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b(\d{4})[./-](\d{1,2})[./-](\d{1,2})\b`),
	regexp.MustCompile(`\b(\d{1,2})[./-](\d{1,2})[./-](\d{4})\b`),
}

var totalPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)kop[aā]\s*:?\s*([0-9 .,]+[0-9])\s*EUR`),
	regexp.MustCompile(`(?i)apmaksai\s*\(EUR\)\.?\s*([0-9 .,]+[0-9])`),
	regexp.MustCompile(`(?i)(?:total|summa\s*kop[aā])\s*:?\s*([0-9 .,]+[0-9])`),
	regexp.MustCompile(`([0-9.,]+)\s*€`),
}

var vatPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:PVN|VAT)\s*(?:21\s*%)?\s*[:(]?\s*([0-9 .,]+[0-9])`),
}

var supplierPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?im)(?:pieg[aā]d[aā]t[aā]js|supplier)\s*:?\s+([^\n\r,]+)`),
	regexp.MustCompile(`(?i)\b(SIA|AS|Z/S)\s*"([^"]{2,40})"`),
	regexp.MustCompile(`(?i)\b(SIA|AS|Z/S)\s+([A-ZĀČĒĢĪĶĻŅŠŪŽ][^\s,;:]{1,30})`),
}

var regNumberPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)re[gģ]\.?\s*nr\.?\s*([0-9]{8,12})`),
	regexp.MustCompile(`(?i)PVN\s*nr\.?\s*LV([0-9]{8,12})`),
}

var ibanPattern = regexp.MustCompile(`\b(LV\d{2}[A-Z]{4}\d{13})\b`)

// Fields extracts every recognizable invoice field from the text.
// Fields with no match are absent from the result.
func Fields(text string) map[string]any {
	fields := make(map[string]any)

	if v := DocumentNumber(text); v != "" {
		fields["document_number"] = v
	}
	if v := InvoiceDate(text); v != "" {
		fields["invoice_date"] = v
	}
	if v := SupplierName(text); v != "" {
		fields["supplier_name"] = v
	}
	if v := firstMatch(regNumberPatterns, text); v != "" {
		fields["supplier_reg_number"] = v
	}
	if m := ibanPattern.FindStringSubmatch(text); m != nil {
		fields["supplier_bank_account"] = m[1]
	}
	if v, ok := firstAmount(totalPatterns, text); ok {
		fields["total_amount"] = v
	}
	if v, ok := firstAmount(vatPatterns, text); ok {
		fields["vat_amount"] = v
	}
	if v := Currency(text); v != "" {
		fields["currency"] = v
	}
	return fields
}

// DocumentNumber finds the invoice or delivery-note number.
func DocumentNumber(text string) string {
	return firstMatch(documentNumberPatterns, text)
}

// InvoiceDate finds a document date and normalizes it to YYYY-MM-DD.
func InvoiceDate(text string) string {
	if m := datePatterns[0].FindStringSubmatch(text); m != nil {
		return formatDate(m[1], m[2], m[3])
	}
	if m := datePatterns[1].FindStringSubmatch(text); m != nil {
		return formatDate(m[3], m[2], m[1])
	}
	return ""
}

// SupplierName finds the supplier, keeping the legal-form prefix.
func SupplierName(text string) string {
	if m := supplierPatterns[0].FindStringSubmatch(text); m != nil {
		return collapseSpaces(m[1])
	}
	for _, p := range supplierPatterns[1:] {
		if m := p.FindStringSubmatch(text); m != nil {
			return strings.ToUpper(m[1]) + " " + collapseSpaces(m[2])
		}
	}
	return ""
}

// Currency recognizes the document currency from codes or symbols.
func Currency(text string) string {
	switch {
	case strings.Contains(text, "EUR"), strings.Contains(text, "€"):
		return "EUR"
	case strings.Contains(text, "USD"), strings.Contains(text, "$"):
		return "USD"
	}
	return ""
}

func firstMatch(patterns []*regexp.Regexp, text string) string {
	for _, p := range patterns {
		if m := p.FindStringSubmatch(text); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

func firstAmount(patterns []*regexp.Regexp, text string) (float64, bool) {
	for _, p := range patterns {
		m := p.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if f, ok := parseAmount(m[1]); ok {
			return f, true
		}
	}
	return 0, false
}

// parseAmount reads a printed amount. Spaces are thousands separators
// and a decimal comma is accepted.
func parseAmount(raw string) (float64, bool) {
	clean := strings.ReplaceAll(raw, " ", "")
	clean = strings.ReplaceAll(clean, ",", ".")
	clean = strings.Trim(clean, ".")

	// Keep only the last dot as the decimal point.
	if n := strings.Count(clean, "."); n > 1 {
		last := strings.LastIndex(clean, ".")
		clean = strings.ReplaceAll(clean[:last], ".", "") + clean[last:]
	}

	f, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func formatDate(year, month, day string) string {
	if len(month) == 1 {
		month = "0" + month
	}
	if len(day) == 1 {
		day = "0" + day
	}
	return year + "-" + month + "-" + day
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
