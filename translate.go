package phraseql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/phraseql/phraseql/domain/model"
)

// translator maps a parsed intent into the executable form for one backend
// kind. Implementations are pure: no I/O, no state.
type translator interface {
	Translate(intent *model.QueryIntent, dataset *model.Dataset) (*model.TranslatedQuery, error)
}

// translatorFor returns the translator for a backend kind.
func translatorFor(backend model.Backend) translator {
	if backend == model.BackendDocument {
		return pipelineTranslator{}
	}
	return sqlTranslator{}
}

// validateIntent checks the intent invariants and every referenced field
// against the dataset schema. Names never reach a query string without
// passing this check, so a crafted phrase cannot inject through an
// interpolated identifier.
func validateIntent(intent *model.QueryIntent, dataset *model.Dataset) error {
	if err := intent.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrTranslation, err)
	}
	if intent.Dataset != dataset.Name {
		return fmt.Errorf("%w: intent targets %q but dataset is %q", ErrTranslation, intent.Dataset, dataset.Name)
	}
	for _, field := range intent.ReferencedFields() {
		// field must already be in normalized form; a raw name that merely
		// normalizes to a known field is not trusted
		if field != model.NormalizeName(field) || !dataset.HasField(field) {
			return fmt.Errorf("%w: %q has no field %q", ErrUnknownField, dataset.Name, field)
		}
	}
	return nil
}

// sqlTranslator renders intents as SQL for the relational backend.
type sqlTranslator struct{}

// Translate implements translator.
func (sqlTranslator) Translate(intent *model.QueryIntent, dataset *model.Dataset) (*model.TranslatedQuery, error) {
	if err := validateIntent(intent, dataset); err != nil {
		return nil, err
	}

	switch intent.Kind {
	case model.IntentSelectFields:
		return model.NewSQLQuery(fmt.Sprintf(
			"SELECT %s FROM %s",
			strings.Join(intent.Fields, ", "),
			dataset.Name,
		)), nil

	case model.IntentFilterComparison:
		conditions := make([]string, 0, len(intent.Filters))
		for _, clause := range intent.Filters {
			conditions = append(conditions, fmt.Sprintf(
				"%s %s %s", clause.Field, clause.Op, sqlLiteral(clause.Value),
			))
		}
		return model.NewSQLQuery(fmt.Sprintf(
			"SELECT * FROM %s WHERE %s",
			dataset.Name,
			strings.Join(conditions, " AND "),
		)), nil

	case model.IntentGroupAggregate:
		agg := fmt.Sprintf("%s(%s)", intent.Aggregate.Fn.SQL(), intent.Aggregate.Field)
		having := intent.Filters[0]
		return model.NewSQLQuery(fmt.Sprintf(
			"SELECT %s, %s FROM %s GROUP BY %s HAVING %s %s %s",
			intent.GroupBy, agg, dataset.Name, intent.GroupBy,
			agg, having.Op, sqlLiteral(having.Value),
		)), nil

	case model.IntentCountGroup:
		return model.NewSQLQuery(fmt.Sprintf(
			"SELECT %s, COUNT(*) FROM %s GROUP BY %s",
			intent.GroupBy, dataset.Name, intent.GroupBy,
		)), nil

	default:
		return nil, fmt.Errorf("%w: %s intents need no backend query", ErrTranslation, intent.Kind)
	}
}

// sqlLiteral renders a literal for interpolation. Numbers render bare;
// strings are quoted with embedded quotes doubled.
func sqlLiteral(value any) string {
	switch v := value.(type) {
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return "'" + strings.ReplaceAll(fmt.Sprint(v), "'", "''") + "'"
	}
}

// pipelineTranslator renders intents as ordered pipeline stages for the
// document backend. Comparators stay in their generic form; the document
// driver maps them to its native operator tokens.
type pipelineTranslator struct{}

// Translate implements translator.
func (pipelineTranslator) Translate(intent *model.QueryIntent, dataset *model.Dataset) (*model.TranslatedQuery, error) {
	if err := validateIntent(intent, dataset); err != nil {
		return nil, err
	}

	switch intent.Kind {
	case model.IntentSelectFields:
		params := make(map[string]any, len(intent.Fields)+1)
		for _, field := range intent.Fields {
			params[field] = 1
		}
		params["_id"] = 0
		return model.NewPipelineQuery(dataset.Name, []model.Stage{
			{Kind: model.StageProject, Params: params},
		}), nil

	case model.IntentFilterComparison:
		params := make(map[string]any, len(intent.Filters))
		for _, clause := range intent.Filters {
			params[clause.Field] = map[string]any{string(clause.Op): clause.Value}
		}
		return model.NewPipelineQuery(dataset.Name, []model.Stage{
			{Kind: model.StageMatch, Params: params},
		}), nil

	case model.IntentGroupAggregate:
		fn := string(intent.Aggregate.Fn)
		having := intent.Filters[0]
		return model.NewPipelineQuery(dataset.Name, []model.Stage{
			{Kind: model.StageGroup, Params: map[string]any{
				"_id": intent.GroupBy,
				fn:    map[string]any{fn: intent.Aggregate.Field},
			}},
			{Kind: model.StageMatch, Params: map[string]any{
				fn: map[string]any{string(having.Op): having.Value},
			}},
		}), nil

	case model.IntentCountGroup:
		return model.NewPipelineQuery(dataset.Name, []model.Stage{
			{Kind: model.StageGroup, Params: map[string]any{
				"_id":   intent.GroupBy,
				"count": map[string]any{"sum": 1},
			}},
		}), nil

	default:
		return nil, fmt.Errorf("%w: %s intents need no backend query", ErrTranslation, intent.Kind)
	}
}
