package model

import (
	"fmt"
	"strings"
)

// Backend identifies which store a dataset was materialized into.
type Backend int

const (
	// BackendRelational stores datasets as SQL tables.
	BackendRelational Backend = iota
	// BackendDocument stores datasets as document collections.
	BackendDocument
)

// String returns the backend name.
func (b Backend) String() string {
	if b == BackendDocument {
		return "document"
	}
	return "relational"
}

// ParseBackend parses a backend name. Accepted values are "relational" and
// "document" (case-insensitive).
func ParseBackend(s string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "relational":
		return BackendRelational, nil
	case "document":
		return BackendDocument, nil
	default:
		return BackendRelational, fmt.Errorf("unknown backend %q", s)
	}
}

// Dataset is one uploaded file materialized as a table or collection.
// A dataset is immutable once materialized; re-uploading under the same
// name creates a new dataset with a suffixed name.
type Dataset struct {
	// Name is the normalized dataset name, unique within the engine.
	Name string
	// Backend is the store the dataset lives in.
	Backend Backend
	// Columns are the inferred column descriptors in file order.
	Columns []ColumnDescriptor
	// Rows is the number of rows materialized into the store.
	Rows int
}

// NewDataset creates a dataset from inferred columns.
func NewDataset(name string, backend Backend, columns []ColumnDescriptor, rows int) *Dataset {
	return &Dataset{
		Name:    name,
		Backend: backend,
		Columns: columns,
		Rows:    rows,
	}
}

// Column returns the descriptor for the named field, or nil if the dataset
// has no such field. Lookup uses normalized names.
func (d *Dataset) Column(name string) *ColumnDescriptor {
	normalized := NormalizeName(name)
	for i := range d.Columns {
		if d.Columns[i].Name == normalized {
			return &d.Columns[i]
		}
	}
	return nil
}

// HasField reports whether the dataset has a field with the given name.
func (d *Dataset) HasField(name string) bool {
	return d.Column(name) != nil
}

// FieldNames returns the normalized column names in file order.
func (d *Dataset) FieldNames() []string {
	names := make([]string, len(d.Columns))
	for i, col := range d.Columns {
		names[i] = col.Name
	}
	return names
}
