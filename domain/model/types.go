// Package model provides the domain model for phraseql: datasets, column
// descriptors, query intents, translated queries, and the type inference
// rules that derive a schema from raw tabular data.
package model

import (
	"fmt"
	"strings"
)

// Character validation constants
const (
	// firstDigitChar represents the first numeric character
	firstDigitChar = '0'
	// lastDigitChar represents the last numeric character
	lastDigitChar = '9'
	// firstLowerChar represents the first lowercase letter
	firstLowerChar = 'a'
	// lastLowerChar represents the last lowercase letter
	lastLowerChar = 'z'
	// underscoreChar represents the underscore character
	underscoreChar = '_'
)

// ColumnType represents the inferred semantic type of a column.
type ColumnType int

const (
	// ColumnTypeText represents free-form text values
	ColumnTypeText ColumnType = iota
	// ColumnTypeInteger represents whole-number values
	ColumnTypeInteger
	// ColumnTypeFloat represents floating-point values
	ColumnTypeFloat
	// ColumnTypeBoolean represents true/false values
	ColumnTypeBoolean
)

// String returns the semantic type name.
func (ct ColumnType) String() string {
	switch ct {
	case ColumnTypeInteger:
		return "integer"
	case ColumnTypeFloat:
		return "float"
	case ColumnTypeBoolean:
		return "boolean"
	default:
		return "text"
	}
}

// Relational SQL type strings
const (
	sqlTypeText    = "TEXT"
	sqlTypeInteger = "INTEGER"
	sqlTypeReal    = "REAL"
	sqlTypeBoolean = "BOOLEAN"
)

// RelationalType returns the SQL column type used when materializing a
// column of this semantic type in the relational store.
func (ct ColumnType) RelationalType() string {
	switch ct {
	case ColumnTypeInteger:
		return sqlTypeInteger
	case ColumnTypeFloat:
		return sqlTypeReal
	case ColumnTypeBoolean:
		return sqlTypeBoolean
	default:
		return sqlTypeText
	}
}

// ColumnDescriptor describes one field of a dataset: its normalized name,
// inferred semantic type, and whether any sampled value was empty.
type ColumnDescriptor struct {
	// Name is the normalized column name.
	Name string
	// Type is the inferred semantic type.
	Type ColumnType
	// Nullable is true if any sampled value was empty or missing.
	Nullable bool
}

// Header is the ordered list of raw column names from an input file.
type Header []string

// NewHeader creates a new header.
func NewHeader(h []string) Header {
	return Header(h)
}

// Equal compares headers element-wise.
func (h Header) Equal(h2 Header) bool {
	if len(h) != len(h2) {
		return false
	}
	for i, v := range h {
		if v != h2[i] {
			return false
		}
	}
	return true
}

// Normalize returns the header with every column name normalized.
func (h Header) Normalize() Header {
	normalized := make(Header, len(h))
	for i, name := range h {
		normalized[i] = NormalizeName(name)
	}
	return normalized
}

// Record represents one row of an input file as raw string fields.
type Record []string

// NewRecord creates a new record.
func NewRecord(r []string) Record {
	return Record(r)
}

// Equal compares records element-wise.
func (r Record) Equal(r2 Record) bool {
	if len(r) != len(r2) {
		return false
	}
	for i, v := range r {
		if v != r2[i] {
			return false
		}
	}
	return true
}

// NormalizeName normalizes a dataset or column name: lowercase, spaces and
// punctuation collapsed to underscores, anything outside [a-z0-9_] dropped.
// A name that starts with a digit is prefixed so it stays a valid SQL
// identifier, and an empty result falls back to "unnamed".
func NormalizeName(name string) string {
	result := strings.ToLower(strings.TrimSpace(name))
	result = strings.ReplaceAll(result, " ", "_")
	result = strings.ReplaceAll(result, "-", "_")
	result = strings.ReplaceAll(result, ".", "_")

	var sanitized strings.Builder
	for _, r := range result {
		if (r >= firstLowerChar && r <= lastLowerChar) ||
			(r >= firstDigitChar && r <= lastDigitChar) ||
			r == underscoreChar {
			sanitized.WriteRune(r)
		}
	}

	finalResult := sanitized.String()

	if len(finalResult) > 0 && finalResult[0] >= firstDigitChar && finalResult[0] <= lastDigitChar {
		finalResult = "ds_" + finalResult
	}

	if finalResult == "" {
		finalResult = "unnamed"
	}

	return finalResult
}

// ValidateColumnNames checks for duplicate column names after normalization.
// Two raw headers that normalize to the same identifier would produce an
// ambiguous schema, so the whole file is rejected.
func ValidateColumnNames(columns Header) error {
	columnsSeen := make(map[string]bool, len(columns))
	for _, col := range columns {
		normalized := NormalizeName(col)
		if columnsSeen[normalized] {
			return fmt.Errorf("duplicate column name %q after normalization", col)
		}
		columnsSeen[normalized] = true
	}
	return nil
}
