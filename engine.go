package phraseql

import (
	"context"
	"fmt"
	"sync"

	"github.com/phraseql/phraseql/domain/model"
)

// maxNameSuffix bounds collision suffix probing so a pathological registry
// cannot loop forever.
const maxNameSuffix = 1000

// RelationalStore is the boundary to the SQL store. It receives fully
// formed plans and query strings; translation never depends on the
// concrete driver.
type RelationalStore interface {
	// Materialize creates the table and bulk-inserts the plan rows.
	Materialize(ctx context.Context, plan *model.RelationalPlan) error
	// Select runs a SQL query and returns rows as column-name maps.
	Select(ctx context.Context, query string) ([]map[string]any, error)
	// ListTables describes every user table currently in the store.
	ListTables(ctx context.Context) ([]*model.Dataset, error)
}

// DocumentStore is the boundary to the document store. It receives plans
// and ordered pipeline-stage descriptions in backend-agnostic form.
type DocumentStore interface {
	// Materialize inserts the plan documents into a new collection.
	Materialize(ctx context.Context, plan *model.DocumentPlan) error
	// Aggregate runs a pipeline against a collection.
	Aggregate(ctx context.Context, collection string, pipeline []model.Stage) ([]map[string]any, error)
	// ListCollections describes every collection, inferring field types
	// from a sampled document.
	ListCollections(ctx context.Context) ([]*model.Dataset, error)
}

// Config carries the store handles the engine needs. Both stores are
// optional; ingesting into or querying an unconfigured backend fails with
// ErrBackendNotConfigured.
type Config struct {
	// Relational is the SQL store handle.
	Relational RelationalStore
	// Document is the document store handle.
	Document DocumentStore
}

// Engine is the schema-inference and query-translation core. It is
// stateless apart from the dataset registry, which a read-write mutex
// guards so concurrent transport-layer requests stay safe. Construct it
// with NewEngine; the zero value has no stores.
type Engine struct {
	relational RelationalStore
	document   DocumentStore

	mu       sync.RWMutex
	datasets map[string]*model.Dataset
	order    []string
}

// NewEngine creates an engine with explicit configuration. No ambient
// global state is read, so engines stay reentrant and unit-testable
// without a live store.
func NewEngine(cfg Config) *Engine {
	return &Engine{
		relational: cfg.Relational,
		document:   cfg.Document,
		datasets:   make(map[string]*model.Dataset),
	}
}

// Result is the plain data answer to a query: a dataset listing, a schema
// description, or result rows. The engine performs no user-facing
// formatting.
type Result struct {
	// Kind is the intent kind that produced the result.
	Kind model.IntentKind
	// Datasets holds the answer for list-datasets and describe-dataset.
	Datasets []*model.Dataset
	// Rows holds data rows or documents for executed queries.
	Rows []map[string]any
	// Query is the executed backend form, nil for registry-only intents.
	Query *model.TranslatedQuery
}

// Ingest parses an uploaded file, infers its schema, and materializes it
// into the backend the source names. It returns the new dataset and the
// number of rows skipped for having a field count different from the
// header. Ingestion is synchronous and local to this request.
func (e *Engine) Ingest(ctx context.Context, source *Source) (*model.Dataset, int, error) {
	header, records, err := source.parse(ctx)
	if err != nil {
		return nil, 0, err
	}
	if len(records) == 0 {
		return nil, 0, fmt.Errorf("%w: %q", ErrEmptyDataset, source.Name)
	}
	if err := model.ValidateColumnNames(header); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrFormat, err)
	}

	// Ragged rows are dropped before inference so a skipped row can never
	// demote a column type or mark a column nullable.
	good, skipped := splitWellFormed(len(header), records)
	if len(good) == 0 {
		return nil, skipped, fmt.Errorf("%w: %q has no well-formed rows", ErrEmptyDataset, source.Name)
	}

	columns := model.InferColumns(header, good)
	name, err := e.claimName(model.NormalizeName(source.Name))
	if err != nil {
		return nil, 0, err
	}

	plan := buildPlan(name, source.Backend, columns, good, skipped)
	if err := e.materialize(ctx, plan); err != nil {
		e.releaseName(name)
		return nil, 0, err
	}

	dataset := model.NewDataset(name, source.Backend, columns, len(good))
	e.register(dataset)
	return dataset, skipped, nil
}

// materialize hands the plan to the store driver for the chosen backend.
// Atomicity of create-then-insert is the driver's concern; a crash
// mid-insert needs no rollback here, and a caller retry lands on a
// suffixed name instead of the half-written one.
func (e *Engine) materialize(ctx context.Context, plan *model.MaterializationPlan) error {
	switch plan.Backend {
	case model.BackendDocument:
		if e.document == nil {
			return fmt.Errorf("%w: document", ErrBackendNotConfigured)
		}
		return e.document.Materialize(ctx, plan.Document)
	default:
		if e.relational == nil {
			return fmt.Errorf("%w: relational", ErrBackendNotConfigured)
		}
		return e.relational.Materialize(ctx, plan.Relational)
	}
}

// Query parses a phrase, translates the intent for the target dataset's
// backend, and executes it. Registry-only intents (list, describe) are
// answered without touching a store.
func (e *Engine) Query(ctx context.Context, phrase string) (*Result, error) {
	intent, err := Parse(phrase, e.DatasetNames())
	if err != nil {
		return nil, err
	}

	switch intent.Kind {
	case model.IntentListDatasets:
		return &Result{Kind: intent.Kind, Datasets: e.Datasets()}, nil
	case model.IntentDescribeDataset:
		dataset, ok := e.lookup(intent.Dataset)
		if !ok {
			return nil, fmt.Errorf("%w: unknown dataset %q", ErrUnknownQuery, intent.Dataset)
		}
		return &Result{Kind: intent.Kind, Datasets: []*model.Dataset{dataset}}, nil
	}

	dataset, ok := e.lookup(intent.Dataset)
	if !ok {
		return nil, fmt.Errorf("%w: unknown dataset %q", ErrUnknownQuery, intent.Dataset)
	}

	query, err := translatorFor(dataset.Backend).Translate(intent, dataset)
	if err != nil {
		return nil, err
	}

	rows, err := e.execute(ctx, query)
	if err != nil {
		return nil, err
	}
	return &Result{Kind: intent.Kind, Rows: rows, Query: query}, nil
}

// execute runs a translated query against its backend's store.
func (e *Engine) execute(ctx context.Context, query *model.TranslatedQuery) ([]map[string]any, error) {
	switch query.Backend {
	case model.BackendDocument:
		if e.document == nil {
			return nil, fmt.Errorf("%w: document", ErrBackendNotConfigured)
		}
		return e.document.Aggregate(ctx, query.Collection, query.Pipeline)
	default:
		if e.relational == nil {
			return nil, fmt.Errorf("%w: relational", ErrBackendNotConfigured)
		}
		return e.relational.Select(ctx, query.SQL)
	}
}

// Hydrate merges datasets already present in the configured stores into
// the registry, so an engine fronting a persistent store can answer
// queries about datasets ingested by earlier processes. Registry entries
// win over store entries with the same name.
func (e *Engine) Hydrate(ctx context.Context) error {
	var found []*model.Dataset
	if e.relational != nil {
		tables, err := e.relational.ListTables(ctx)
		if err != nil {
			return fmt.Errorf("hydrate relational store: %w", err)
		}
		found = append(found, tables...)
	}
	if e.document != nil {
		collections, err := e.document.ListCollections(ctx)
		if err != nil {
			return fmt.Errorf("hydrate document store: %w", err)
		}
		found = append(found, collections...)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, dataset := range found {
		if _, exists := e.datasets[dataset.Name]; exists {
			continue
		}
		e.datasets[dataset.Name] = dataset
		e.order = append(e.order, dataset.Name)
	}
	return nil
}

// DatasetNames returns the normalized names of every known dataset in
// ingestion order.
func (e *Engine) DatasetNames() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, len(e.order))
	copy(names, e.order)
	return names
}

// Datasets returns every known dataset in ingestion order.
func (e *Engine) Datasets() []*model.Dataset {
	e.mu.RLock()
	defer e.mu.RUnlock()
	datasets := make([]*model.Dataset, 0, len(e.order))
	for _, name := range e.order {
		datasets = append(datasets, e.datasets[name])
	}
	return datasets
}

// lookup finds a dataset by normalized name. A reserved name whose
// materialization has not finished holds a nil placeholder and does not
// resolve.
func (e *Engine) lookup(name string) (*model.Dataset, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	dataset, ok := e.datasets[name]
	return dataset, ok && dataset != nil
}

// claimName reserves a dataset name, appending a numeric suffix when the
// normalized name is already in use. The reservation prevents two
// concurrent uploads of the same file from racing into one table name.
func (e *Engine) claimName(name string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	candidate := name
	for i := 1; i <= maxNameSuffix; i++ {
		if _, exists := e.datasets[candidate]; !exists {
			// reserve with a placeholder until materialization finishes
			e.datasets[candidate] = nil
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s_%d", name, i)
	}
	return "", fmt.Errorf("%w: %q (tried %d suffixes)", ErrSchemaConflict, name, maxNameSuffix)
}

// releaseName drops a reservation after a failed ingestion.
func (e *Engine) releaseName(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if dataset, ok := e.datasets[name]; ok && dataset == nil {
		delete(e.datasets, name)
	}
}

// register publishes a materialized dataset under its reserved name.
func (e *Engine) register(dataset *model.Dataset) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.datasets[dataset.Name] = dataset
	e.order = append(e.order, dataset.Name)
}
