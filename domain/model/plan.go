package model

// RelationalPlan materializes a dataset as a SQL table: one CREATE TABLE
// statement followed by a parameterized batch insert. Values in Rows are
// already coerced to the inferred column types.
type RelationalPlan struct {
	// Table is the normalized table name.
	Table string
	// CreateSQL is the CREATE TABLE statement.
	CreateSQL string
	// InsertSQL is the parameterized INSERT statement used for every row.
	InsertSQL string
	// Rows are the coerced row values, one slice per insert.
	Rows [][]any
}

// DocumentPlan materializes a dataset as a document collection: one
// document per row with field values coerced to the inferred types.
type DocumentPlan struct {
	// Collection is the normalized collection name.
	Collection string
	// Documents are the coerced documents to insert.
	Documents []map[string]any
}

// MaterializationPlan is the Schema Builder output handed to the store
// driver. Exactly one of Relational or Document is set, chosen by Backend.
type MaterializationPlan struct {
	// Backend selects which plan is populated.
	Backend Backend
	// Relational is the SQL materialization, nil for document datasets.
	Relational *RelationalPlan
	// Document is the collection materialization, nil for relational datasets.
	Document *DocumentPlan
	// Skipped counts input rows dropped for having a field count different
	// from the header.
	Skipped int
}
