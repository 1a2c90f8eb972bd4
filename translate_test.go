package phraseql

import (
	"errors"
	"reflect"
	"testing"

	"github.com/phraseql/phraseql/domain/model"
)

func carsDataset(backend model.Backend) *model.Dataset {
	return model.NewDataset("cars", backend, []model.ColumnDescriptor{
		{Name: "id", Type: model.ColumnTypeInteger},
		{Name: "make", Type: model.ColumnTypeText},
		{Name: "price", Type: model.ColumnTypeFloat},
	}, 100)
}

func TestSQLTranslator(t *testing.T) {
	t.Parallel()

	dataset := carsDataset(model.BackendRelational)

	tests := []struct {
		name   string
		intent *model.QueryIntent
		want   string
	}{
		{
			name: "select fields",
			intent: &model.QueryIntent{
				Kind:    model.IntentSelectFields,
				Dataset: "cars",
				Fields:  []string{"make", "price"},
			},
			want: "SELECT make, price FROM cars",
		},
		{
			name: "filter comparison",
			intent: &model.QueryIntent{
				Kind:    model.IntentFilterComparison,
				Dataset: "cars",
				Filters: []model.FilterClause{{Field: "price", Op: model.OpGreater, Value: int64(20000)}},
			},
			want: "SELECT * FROM cars WHERE price > 20000",
		},
		{
			name: "filter with float literal",
			intent: &model.QueryIntent{
				Kind:    model.IntentFilterComparison,
				Dataset: "cars",
				Filters: []model.FilterClause{{Field: "price", Op: model.OpLessEqual, Value: 1.5}},
			},
			want: "SELECT * FROM cars WHERE price <= 1.5",
		},
		{
			name: "filter with string literal quoted",
			intent: &model.QueryIntent{
				Kind:    model.IntentFilterComparison,
				Dataset: "cars",
				Filters: []model.FilterClause{{Field: "make", Op: model.OpEqual, Value: "o'brien"}},
			},
			want: "SELECT * FROM cars WHERE make = 'o''brien'",
		},
		{
			name: "multiple filters joined with AND",
			intent: &model.QueryIntent{
				Kind:    model.IntentFilterComparison,
				Dataset: "cars",
				Filters: []model.FilterClause{
					{Field: "price", Op: model.OpGreater, Value: int64(10000)},
					{Field: "price", Op: model.OpLess, Value: int64(30000)},
				},
			},
			want: "SELECT * FROM cars WHERE price > 10000 AND price < 30000",
		},
		{
			name: "group aggregate with having",
			intent: &model.QueryIntent{
				Kind:      model.IntentGroupAggregate,
				Dataset:   "cars",
				Fields:    []string{"make"},
				GroupBy:   "make",
				Aggregate: &model.AggregateSpec{Fn: model.AggAvg, Field: "price"},
				Filters:   []model.FilterClause{{Field: "price", Op: model.OpGreater, Value: int64(20000)}},
			},
			want: "SELECT make, AVG(price) FROM cars GROUP BY make HAVING AVG(price) > 20000",
		},
		{
			name: "count group",
			intent: &model.QueryIntent{
				Kind:    model.IntentCountGroup,
				Dataset: "cars",
				GroupBy: "make",
			},
			want: "SELECT make, COUNT(*) FROM cars GROUP BY make",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := translatorFor(model.BackendRelational).Translate(tt.intent, dataset)
			if err != nil {
				t.Fatalf("Translate() error = %v", err)
			}
			if got.SQL != tt.want {
				t.Errorf("Translate() SQL = %q, want %q", got.SQL, tt.want)
			}
			if got.Backend != model.BackendRelational {
				t.Errorf("Translate() backend = %v, want relational", got.Backend)
			}
		})
	}
}

func TestPipelineTranslator(t *testing.T) {
	t.Parallel()

	dataset := carsDataset(model.BackendDocument)

	tests := []struct {
		name   string
		intent *model.QueryIntent
		want   []model.Stage
	}{
		{
			name: "select fields projects",
			intent: &model.QueryIntent{
				Kind:    model.IntentSelectFields,
				Dataset: "cars",
				Fields:  []string{"make", "price"},
			},
			want: []model.Stage{
				{Kind: model.StageProject, Params: map[string]any{"make": 1, "price": 1, "_id": 0}},
			},
		},
		{
			name: "filter comparison matches",
			intent: &model.QueryIntent{
				Kind:    model.IntentFilterComparison,
				Dataset: "cars",
				Filters: []model.FilterClause{{Field: "price", Op: model.OpGreater, Value: int64(20000)}},
			},
			want: []model.Stage{
				{Kind: model.StageMatch, Params: map[string]any{
					"price": map[string]any{">": int64(20000)},
				}},
			},
		},
		{
			name: "group aggregate groups then matches",
			intent: &model.QueryIntent{
				Kind:      model.IntentGroupAggregate,
				Dataset:   "cars",
				Fields:    []string{"make"},
				GroupBy:   "make",
				Aggregate: &model.AggregateSpec{Fn: model.AggAvg, Field: "price"},
				Filters:   []model.FilterClause{{Field: "price", Op: model.OpGreater, Value: int64(20000)}},
			},
			want: []model.Stage{
				{Kind: model.StageGroup, Params: map[string]any{
					"_id": "make",
					"avg": map[string]any{"avg": "price"},
				}},
				{Kind: model.StageMatch, Params: map[string]any{
					"avg": map[string]any{">": int64(20000)},
				}},
			},
		},
		{
			name: "count group sums ones",
			intent: &model.QueryIntent{
				Kind:    model.IntentCountGroup,
				Dataset: "cars",
				GroupBy: "make",
			},
			want: []model.Stage{
				{Kind: model.StageGroup, Params: map[string]any{
					"_id":   "make",
					"count": map[string]any{"sum": 1},
				}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := translatorFor(model.BackendDocument).Translate(tt.intent, dataset)
			if err != nil {
				t.Fatalf("Translate() error = %v", err)
			}
			if got.Collection != "cars" {
				t.Errorf("Translate() collection = %q, want %q", got.Collection, "cars")
			}
			if !reflect.DeepEqual(got.Pipeline, tt.want) {
				t.Errorf("Translate() pipeline = %+v, want %+v", got.Pipeline, tt.want)
			}
		})
	}
}

func TestTranslateRejectsUnknownField(t *testing.T) {
	t.Parallel()

	intent := &model.QueryIntent{
		Kind:    model.IntentFilterComparison,
		Dataset: "cars",
		Filters: []model.FilterClause{{Field: "horsepower", Op: model.OpGreater, Value: int64(100)}},
	}

	for _, backend := range []model.Backend{model.BackendRelational, model.BackendDocument} {
		_, err := translatorFor(backend).Translate(intent, carsDataset(backend))
		if !errors.Is(err, ErrUnknownField) {
			t.Errorf("%s: error = %v, want ErrUnknownField", backend, err)
		}
	}
}

func TestTranslateRejectsInjectedField(t *testing.T) {
	t.Parallel()

	// A field name carrying SQL must fail validation before it could ever
	// reach the query string.
	intent := &model.QueryIntent{
		Kind:    model.IntentSelectFields,
		Dataset: "cars",
		Fields:  []string{"price; DROP TABLE cars"},
	}

	_, err := translatorFor(model.BackendRelational).Translate(intent, carsDataset(model.BackendRelational))
	if !errors.Is(err, ErrUnknownField) {
		t.Fatalf("error = %v, want ErrUnknownField", err)
	}
}

func TestTranslateRejectsMismatchedDataset(t *testing.T) {
	t.Parallel()

	intent := &model.QueryIntent{
		Kind:    model.IntentCountGroup,
		Dataset: "trucks",
		GroupBy: "make",
	}

	_, err := translatorFor(model.BackendRelational).Translate(intent, carsDataset(model.BackendRelational))
	if !errors.Is(err, ErrTranslation) {
		t.Fatalf("error = %v, want ErrTranslation", err)
	}
}

func TestTranslateRejectsRegistryIntents(t *testing.T) {
	t.Parallel()

	intent := &model.QueryIntent{Kind: model.IntentDescribeDataset, Dataset: "cars"}

	for _, backend := range []model.Backend{model.BackendRelational, model.BackendDocument} {
		_, err := translatorFor(backend).Translate(intent, carsDataset(backend))
		if !errors.Is(err, ErrTranslation) {
			t.Errorf("%s: error = %v, want ErrTranslation", backend, err)
		}
	}
}
