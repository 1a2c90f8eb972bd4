package model

// StageKind identifies a document pipeline stage.
type StageKind int

const (
	// StageMatch filters documents by comparison conditions.
	StageMatch StageKind = iota
	// StageGroup groups documents and computes aggregates.
	StageGroup
	// StageProject selects which fields appear in the output.
	StageProject
)

// String returns the stage kind name.
func (k StageKind) String() string {
	switch k {
	case StageGroup:
		return "group"
	case StageProject:
		return "project"
	default:
		return "match"
	}
}

// Stage is one step of a document pipeline in backend-agnostic form. The
// parameter conventions mirror the translation rules:
//
//   - match: {field: {op: literal}} or {field: literal} for equality
//   - group: {"_id": groupField, aggName: {fn: field-or-1}}
//   - project: {field: 1, ..., "_id": 0}
//
// The document store driver converts these to its native operator tokens;
// nothing in the stage is driver-specific.
type Stage struct {
	// Kind is the stage kind.
	Kind StageKind
	// Params are the stage parameters.
	Params map[string]any
}

// TranslatedQuery is the backend-specific executable form of a query
// intent: a SQL string for the relational path or an ordered pipeline for
// the document path, never both.
type TranslatedQuery struct {
	// Backend selects which representation is populated.
	Backend Backend
	// SQL is the relational query text.
	SQL string
	// Collection is the target collection for the document path.
	Collection string
	// Pipeline is the ordered stage list for the document path.
	Pipeline []Stage
}

// NewSQLQuery creates a relational translated query.
func NewSQLQuery(sql string) *TranslatedQuery {
	return &TranslatedQuery{
		Backend: BackendRelational,
		SQL:     sql,
	}
}

// NewPipelineQuery creates a document translated query.
func NewPipelineQuery(collection string, stages []Stage) *TranslatedQuery {
	return &TranslatedQuery{
		Backend:    BackendDocument,
		Collection: collection,
		Pipeline:   stages,
	}
}
