package driver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/phraseql/phraseql/domain/model"
)

// comparatorOperators maps the generic comparator tokens carried by
// pipeline stages to MongoDB query operators.
var comparatorOperators = map[string]string{
	">":  "$gt",
	"<":  "$lt",
	">=": "$gte",
	"<=": "$lte",
	"=":  "$eq",
	"!=": "$ne",
}

// Document is a MongoDB-backed document store.
type Document struct {
	client *mongo.Client
	db     *mongo.Database
	logger *slog.Logger
}

// OpenDocument connects to a MongoDB deployment and selects a database.
func OpenDocument(ctx context.Context, uri, database string, logger *slog.Logger) (*Document, error) {
	if logger == nil {
		logger = slog.Default()
	}
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}
	return &Document{
		client: client,
		db:     client.Database(database),
		logger: logger,
	}, nil
}

// Close disconnects the client.
func (d *Document) Close(ctx context.Context) error {
	return d.client.Disconnect(ctx)
}

// Materialize inserts the plan's documents into its collection.
func (d *Document) Materialize(ctx context.Context, plan *model.DocumentPlan) error {
	documents := make([]any, len(plan.Documents))
	for i, doc := range plan.Documents {
		documents[i] = doc
	}
	if _, err := d.db.Collection(plan.Collection).InsertMany(ctx, documents); err != nil {
		return fmt.Errorf("insert into %s: %w", plan.Collection, err)
	}
	d.logger.Debug("materialized collection", "collection", plan.Collection, "documents", len(documents))
	return nil
}

// Aggregate converts the generic stages to a native pipeline and runs it.
func (d *Document) Aggregate(ctx context.Context, collection string, stages []model.Stage) ([]map[string]any, error) {
	pipeline, err := PipelineFromStages(stages)
	if err != nil {
		return nil, err
	}

	cursor, err := d.db.Collection(collection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate %s: %w", collection, err)
	}
	defer cursor.Close(ctx)

	var results []map[string]any
	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode result document: %w", err)
		}
		results = append(results, map[string]any(doc))
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate results: %w", err)
	}
	return results, nil
}

// ListCollections rebuilds dataset descriptors for every collection by
// sampling one document per collection and inferring field types from the
// stored value kinds.
func (d *Document) ListCollections(ctx context.Context) ([]*model.Dataset, error) {
	names, err := d.db.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	sort.Strings(names)

	datasets := make([]*model.Dataset, 0, len(names))
	for _, name := range names {
		coll := d.db.Collection(name)

		var sample bson.M
		err := coll.FindOne(ctx, bson.D{}).Decode(&sample)
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				continue
			}
			return nil, fmt.Errorf("sample %s: %w", name, err)
		}

		count, err := coll.CountDocuments(ctx, bson.D{})
		if err != nil {
			return nil, fmt.Errorf("count %s: %w", name, err)
		}

		datasets = append(datasets, model.NewDataset(
			name, model.BackendDocument, columnsFromSample(sample), int(count),
		))
	}
	return datasets, nil
}

// columnsFromSample infers column descriptors from one document's value
// kinds. Sampling one document cannot see which fields are sometimes
// absent, so every field reads as nullable.
func columnsFromSample(sample bson.M) []model.ColumnDescriptor {
	fields := make([]string, 0, len(sample))
	for field := range sample {
		if field == "_id" {
			continue
		}
		fields = append(fields, field)
	}
	sort.Strings(fields)

	columns := make([]model.ColumnDescriptor, 0, len(fields))
	for _, field := range fields {
		columns = append(columns, model.ColumnDescriptor{
			Name:     field,
			Type:     columnTypeFromValue(sample[field]),
			Nullable: true,
		})
	}
	return columns
}

// columnTypeFromValue maps a BSON-decoded Go value to a column type.
func columnTypeFromValue(value any) model.ColumnType {
	switch value.(type) {
	case int32, int64, int:
		return model.ColumnTypeInteger
	case float32, float64:
		return model.ColumnTypeFloat
	case bool:
		return model.ColumnTypeBoolean
	default:
		return model.ColumnTypeText
	}
}

// PipelineFromStages converts generic pipeline stages into a native
// aggregation pipeline. Exported so stage conversion stays testable
// without a running deployment.
func PipelineFromStages(stages []model.Stage) (mongo.Pipeline, error) {
	pipeline := make(mongo.Pipeline, 0, len(stages))
	for _, stage := range stages {
		switch stage.Kind {
		case model.StageMatch:
			doc, err := matchDocument(stage.Params)
			if err != nil {
				return nil, err
			}
			pipeline = append(pipeline, bson.D{{Key: "$match", Value: doc}})
		case model.StageGroup:
			doc, err := groupDocument(stage.Params)
			if err != nil {
				return nil, err
			}
			pipeline = append(pipeline, bson.D{{Key: "$group", Value: doc}})
		case model.StageProject:
			pipeline = append(pipeline, bson.D{{Key: "$project", Value: projectDocument(stage.Params)}})
		default:
			return nil, fmt.Errorf("unsupported pipeline stage %q", stage.Kind)
		}
	}
	return pipeline, nil
}

// matchDocument converts generic per-field comparator maps into native
// operator documents.
func matchDocument(params map[string]any) (bson.D, error) {
	doc := make(bson.D, 0, len(params))
	for _, field := range sortedKeys(params) {
		comparison, ok := params[field].(map[string]any)
		if !ok {
			// a bare literal means equality
			doc = append(doc, bson.E{Key: field, Value: params[field]})
			continue
		}
		condition := make(bson.D, 0, len(comparison))
		for _, op := range sortedKeys(comparison) {
			operator, ok := comparatorOperators[op]
			if !ok {
				return nil, fmt.Errorf("match on %q: unsupported comparator %q", field, op)
			}
			condition = append(condition, bson.E{Key: operator, Value: comparison[op]})
		}
		doc = append(doc, bson.E{Key: field, Value: condition})
	}
	return doc, nil
}

// groupDocument converts a generic group description into a native $group
// document. The "_id" entry names the grouping field; every other entry is
// an accumulator of the form {fn: operand}. A count accumulator renders as
// a sum of ones since the native stage has no count operator.
func groupDocument(params map[string]any) (bson.D, error) {
	doc := make(bson.D, 0, len(params))
	for _, key := range sortedKeys(params) {
		if key == "_id" {
			field, ok := params[key].(string)
			if !ok {
				return nil, fmt.Errorf("group _id: expected field name, got %T", params[key])
			}
			doc = append(doc, bson.E{Key: "_id", Value: "$" + field})
			continue
		}

		accumulator, ok := params[key].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("group %q: expected accumulator map, got %T", key, params[key])
		}
		for fn, operand := range accumulator {
			expr, err := accumulatorExpression(fn, operand)
			if err != nil {
				return nil, fmt.Errorf("group %q: %w", key, err)
			}
			doc = append(doc, bson.E{Key: key, Value: expr})
		}
	}
	return doc, nil
}

// accumulatorExpression renders one accumulator. String operands are field
// references and get the reference prefix; numeric operands pass through.
func accumulatorExpression(fn string, operand any) (bson.D, error) {
	if field, ok := operand.(string); ok {
		operand = "$" + field
	}
	switch fn {
	case "avg":
		return bson.D{{Key: "$avg", Value: operand}}, nil
	case "sum":
		return bson.D{{Key: "$sum", Value: operand}}, nil
	case "count":
		return bson.D{{Key: "$sum", Value: 1}}, nil
	default:
		return nil, fmt.Errorf("unsupported aggregate %q", fn)
	}
}

// projectDocument converts inclusion params into a native $project
// document.
func projectDocument(params map[string]any) bson.D {
	doc := make(bson.D, 0, len(params))
	for _, field := range sortedKeys(params) {
		doc = append(doc, bson.E{Key: field, Value: params[field]})
	}
	return doc
}

// sortedKeys returns a map's keys in sorted order for deterministic
// document construction.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
