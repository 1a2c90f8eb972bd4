package model

import (
	"strconv"
	"strings"
)

// booleanLiterals is the closed set of values accepted as booleans.
// Comparison is case-insensitive.
var booleanLiterals = map[string]bool{
	"true":  true,
	"false": true,
	"0":     true,
	"1":     true,
}

// InferColumnType infers the semantic type of a column from its raw string
// values. The most specific type that every non-empty value conforms to
// wins: integer over float over boolean over text. A single non-conforming
// value anywhere demotes the whole column to the next less specific type.
// Empty values are ignored for the type decision but reported as nullable.
// An all-empty column infers text with nullable set.
func InferColumnType(values []string) (ColumnType, bool) {
	nullable := false
	nonEmptyCount := 0

	allInteger := true
	allFloat := true
	allBoolean := true

	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			nullable = true
			continue
		}
		nonEmptyCount++

		if allInteger && !isInteger(value) {
			allInteger = false
		}
		if allFloat && !isFloat(value) {
			allFloat = false
		}
		if allBoolean && !booleanLiterals[strings.ToLower(value)] {
			allBoolean = false
		}

		// Every candidate is already ruled out; the column is text.
		if !allInteger && !allFloat && !allBoolean {
			return ColumnTypeText, nullable || hasEmpty(values)
		}
	}

	if nonEmptyCount == 0 {
		return ColumnTypeText, true
	}

	switch {
	case allInteger:
		return ColumnTypeInteger, nullable
	case allFloat:
		return ColumnTypeFloat, nullable
	case allBoolean:
		return ColumnTypeBoolean, nullable
	default:
		return ColumnTypeText, nullable
	}
}

// hasEmpty reports whether any value in the column is empty. Used when type
// scanning terminates early so the nullable flag still covers unseen values.
func hasEmpty(values []string) bool {
	for _, value := range values {
		if strings.TrimSpace(value) == "" {
			return true
		}
	}
	return false
}

// isInteger checks if a value is an integer with a cheap pre-check before
// the full parse.
func isInteger(value string) bool {
	if len(value) == 0 {
		return false
	}
	first := value[0]
	if first != '+' && first != '-' && (first < '0' || first > '9') {
		return false
	}

	_, err := strconv.ParseInt(value, 10, 64)
	return err == nil
}

// isFloat checks if a value is a float. Integers also parse as floats, so
// integer columns always satisfy the float candidate too.
func isFloat(value string) bool {
	hasDigit := false
	for _, r := range value {
		if r >= '0' && r <= '9' {
			hasDigit = true
			break
		}
	}
	if !hasDigit {
		return false
	}

	_, err := strconv.ParseFloat(value, 64)
	return err == nil
}

// InferColumns infers a descriptor for every column of a dataset. Records
// shorter than the header contribute missing values, which mark the column
// nullable.
func InferColumns(header Header, records []Record) []ColumnDescriptor {
	columnCount := len(header)
	if columnCount == 0 {
		return nil
	}

	columns := make([]ColumnDescriptor, columnCount)
	for i, name := range header {
		columns[i] = ColumnDescriptor{
			Name: NormalizeName(name),
			Type: ColumnTypeText,
		}
		if len(records) == 0 {
			columns[i].Nullable = true
		}
	}

	if len(records) == 0 {
		return columns
	}

	for i := range columnCount {
		values := make([]string, 0, len(records))
		missing := false
		for _, record := range records {
			if i < len(record) {
				values = append(values, record[i])
			} else {
				missing = true
			}
		}

		colType, nullable := InferColumnType(values)
		columns[i].Type = colType
		columns[i].Nullable = nullable || missing
	}

	return columns
}
