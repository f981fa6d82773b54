package ingest

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeLabel puts a label in Unicode NFC form and collapses runs of
// whitespace, so "Zone  Nord" and a decomposed "Zône Nord" from a different
// export group together with their canonical spellings.
func NormalizeLabel(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}

// headerKey is the comparison form of a column header.
func headerKey(s string) string {
	return strings.ToLower(NormalizeLabel(s))
}
