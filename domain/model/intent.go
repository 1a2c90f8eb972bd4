package model

import (
	"errors"
	"fmt"
)

// IntentKind tags the variant of a parsed query intent.
type IntentKind int

const (
	// IntentListDatasets lists every known dataset.
	IntentListDatasets IntentKind = iota
	// IntentDescribeDataset returns the column descriptors of one dataset.
	IntentDescribeDataset
	// IntentSelectFields projects a subset of fields.
	IntentSelectFields
	// IntentFilterComparison filters rows by comparison clauses.
	IntentFilterComparison
	// IntentGroupAggregate groups by a field and filters groups by an aggregate.
	IntentGroupAggregate
	// IntentCountGroup counts rows per group.
	IntentCountGroup
)

// String returns the intent kind name.
func (k IntentKind) String() string {
	switch k {
	case IntentListDatasets:
		return "list-datasets"
	case IntentDescribeDataset:
		return "describe-dataset"
	case IntentSelectFields:
		return "select-fields"
	case IntentFilterComparison:
		return "filter-comparison"
	case IntentGroupAggregate:
		return "group-aggregate"
	case IntentCountGroup:
		return "count-group"
	default:
		return "unknown"
	}
}

// CompareOp is a comparison operator in a filter or having clause.
type CompareOp string

// Supported comparison operators.
const (
	OpGreater      CompareOp = ">"
	OpLess         CompareOp = "<"
	OpGreaterEqual CompareOp = ">="
	OpLessEqual    CompareOp = "<="
	OpEqual        CompareOp = "="
)

// Valid reports whether the operator is one of the supported comparators.
func (op CompareOp) Valid() bool {
	switch op {
	case OpGreater, OpLess, OpGreaterEqual, OpLessEqual, OpEqual:
		return true
	}
	return false
}

// AggregateFn is an aggregate function name.
type AggregateFn string

// Supported aggregate functions.
const (
	AggAvg   AggregateFn = "avg"
	AggCount AggregateFn = "count"
	AggSum   AggregateFn = "sum"
)

// SQL returns the SQL spelling of the aggregate function.
func (fn AggregateFn) SQL() string {
	switch fn {
	case AggAvg:
		return "AVG"
	case AggSum:
		return "SUM"
	default:
		return "COUNT"
	}
}

// FilterClause is one (field, comparator, literal) condition.
type FilterClause struct {
	// Field is the normalized field name the clause applies to.
	Field string
	// Op is the comparison operator.
	Op CompareOp
	// Value is the literal: int64, float64, or string.
	Value any
}

// AggregateSpec is an aggregate function applied to a field.
type AggregateSpec struct {
	// Fn is the aggregate function.
	Fn AggregateFn
	// Field is the normalized field the function aggregates over.
	Field string
}

// QueryIntent is the parsed, backend-agnostic representation of a user
// query phrase. Which attributes are populated depends on Kind; Validate
// enforces the per-kind invariants.
type QueryIntent struct {
	// Kind tags the intent variant.
	Kind IntentKind
	// Dataset is the normalized target dataset name. Empty for list-datasets.
	Dataset string
	// Fields are the projected fields for select-fields intents.
	Fields []string
	// Filters are the comparison clauses for filter-comparison intents and
	// the having clause of group-aggregate intents.
	Filters []FilterClause
	// GroupBy is the grouping field for group-aggregate and count-group.
	GroupBy string
	// Aggregate is the aggregate spec for group-aggregate intents.
	Aggregate *AggregateSpec
}

// Intent invariant violations.
var (
	errMissingDataset   = errors.New("intent has no target dataset")
	errMissingFields    = errors.New("select-fields intent has no fields")
	errMissingFilter    = errors.New("filter-comparison intent has no filter clause")
	errMissingGroupBy   = errors.New("intent has no group-by field")
	errMissingAggregate = errors.New("group-aggregate intent has no aggregate spec")
)

// Validate checks the per-kind invariants: a group-aggregate intent carries
// exactly one group-by field and one aggregate spec, a filter-comparison
// intent carries at least one clause, and every dataset-scoped intent names
// its dataset.
func (q *QueryIntent) Validate() error {
	if q.Kind != IntentListDatasets && q.Dataset == "" {
		return errMissingDataset
	}

	switch q.Kind {
	case IntentSelectFields:
		if len(q.Fields) == 0 {
			return errMissingFields
		}
	case IntentFilterComparison:
		if len(q.Filters) == 0 {
			return errMissingFilter
		}
		for _, clause := range q.Filters {
			if !clause.Op.Valid() {
				return fmt.Errorf("unsupported comparator %q", clause.Op)
			}
		}
	case IntentGroupAggregate:
		if q.GroupBy == "" {
			return errMissingGroupBy
		}
		if q.Aggregate == nil {
			return errMissingAggregate
		}
		if len(q.Filters) != 1 {
			return fmt.Errorf("group-aggregate intent needs exactly one having clause, got %d", len(q.Filters))
		}
	case IntentCountGroup:
		if q.GroupBy == "" {
			return errMissingGroupBy
		}
	}
	return nil
}

// ReferencedFields returns every field name the intent mentions. The
// translator validates each against the dataset schema before it is
// interpolated into a query.
func (q *QueryIntent) ReferencedFields() []string {
	fields := make([]string, 0, len(q.Fields)+len(q.Filters)+2)
	fields = append(fields, q.Fields...)
	for _, clause := range q.Filters {
		fields = append(fields, clause.Field)
	}
	if q.GroupBy != "" {
		fields = append(fields, q.GroupBy)
	}
	if q.Aggregate != nil && q.Aggregate.Field != "" {
		fields = append(fields, q.Aggregate.Field)
	}
	return fields
}
