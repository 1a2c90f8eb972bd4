package phraseql

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/phraseql/phraseql/domain/model"
)

// comparatorWords maps multi-word comparator phrases to operators. Keys are
// the first token; values map the required second token to the operator.
var comparatorWords = map[string]map[string]model.CompareOp{
	"larger":  {"than": model.OpGreater},
	"greater": {"than": model.OpGreater},
	"more":    {"than": model.OpGreater},
	"smaller": {"than": model.OpLess},
	"less":    {"than": model.OpLess},
	"at":      {"least": model.OpGreaterEqual, "most": model.OpLessEqual},
	"equal":   {"to": model.OpEqual},
}

// comparatorSymbols maps bare operator tokens to operators.
var comparatorSymbols = map[string]model.CompareOp{
	">":  model.OpGreater,
	"<":  model.OpLess,
	">=": model.OpGreaterEqual,
	"<=": model.OpLessEqual,
	"=":  model.OpEqual,
}

// template is one phrase pattern: a structural matcher plus intent
// extractor. Templates are tried in priority order with early exit on the
// first structural match, so a generic pattern can never swallow a more
// specific one.
type template struct {
	name    string
	extract func(p *phraseContext) (*model.QueryIntent, bool, error)
}

// phraseContext carries one phrase through template matching.
type phraseContext struct {
	tokens []string
	known  map[string]bool
}

// templates is the ordered template list. Structural matching and dataset
// validation are separate steps: once a template matches structurally, an
// unknown dataset name is an error, never a fallthrough to a later
// template. Guessing a dataset would silently query the wrong data.
var templates = []template{
	{name: "list-datasets", extract: extractListDatasets},
	{name: "describe-dataset", extract: extractDescribe},
	{name: "count-group", extract: extractCountGroup},
	{name: "group-aggregate-implicit", extract: extractGroupAggregateImplicit},
	{name: "group-aggregate", extract: extractGroupAggregate},
	{name: "select-fields", extract: extractSelectFields},
	{name: "filter-comparison", extract: extractFilterComparison},
	{name: "count-total-group", extract: extractCountTotalGroup},
}

// Parse pattern-matches a phrase against the query templates and returns
// the backend-agnostic intent. knownDatasets are the normalized names the
// engine currently holds; a phrase that matches no template, or references
// a dataset outside that set, fails with ErrUnknownQuery.
func Parse(phrase string, knownDatasets []string) (*model.QueryIntent, error) {
	ctx := &phraseContext{
		tokens: tokenize(phrase),
		known:  make(map[string]bool, len(knownDatasets)),
	}
	for _, name := range knownDatasets {
		ctx.known[model.NormalizeName(name)] = true
	}

	if len(ctx.tokens) == 0 {
		return nil, fmt.Errorf("%w: empty phrase", ErrUnknownQuery)
	}

	for _, tmpl := range templates {
		intent, matched, err := tmpl.extract(ctx)
		if err != nil {
			return nil, err
		}
		if !matched {
			continue
		}
		if err := intent.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnknownQuery, err)
		}
		return intent, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownQuery, phrase)
}

// tokenize lower-cases the phrase and splits it on whitespace and commas.
func tokenize(phrase string) []string {
	return strings.FieldsFunc(strings.ToLower(phrase), func(r rune) bool {
		return unicode.IsSpace(r) || r == ','
	})
}

// resolveDataset normalizes a dataset token and checks it against the
// known set.
func (p *phraseContext) resolveDataset(token string) (string, error) {
	name := model.NormalizeName(token)
	if !p.known[name] {
		return "", fmt.Errorf("%w: unknown dataset %q", ErrUnknownQuery, token)
	}
	return name, nil
}

// matchComparator matches a comparator at the start of tokens and returns
// the operator plus how many tokens it consumed.
func matchComparator(tokens []string) (model.CompareOp, int, bool) {
	if len(tokens) == 0 {
		return "", 0, false
	}
	if op, ok := comparatorSymbols[tokens[0]]; ok {
		return op, 1, true
	}
	if len(tokens) >= 2 {
		if seconds, ok := comparatorWords[tokens[0]]; ok {
			if op, ok := seconds[tokens[1]]; ok {
				return op, 2, true
			}
		}
	}
	return "", 0, false
}

// parseLiteral parses a literal token: float when it contains a decimal
// point, integer otherwise, falling back to the bare string for
// non-numeric values.
func parseLiteral(token string) any {
	if strings.Contains(token, ".") {
		if f, err := strconv.ParseFloat(token, 64); err == nil {
			return f
		}
	}
	if n, err := strconv.ParseInt(token, 10, 64); err == nil {
		return n
	}
	return strings.Trim(token, `'"`)
}

// extractListDatasets matches "show tables", "show collections", and
// "list datasets".
func extractListDatasets(p *phraseContext) (*model.QueryIntent, bool, error) {
	if len(p.tokens) != 2 {
		return nil, false, nil
	}
	first, second := p.tokens[0], p.tokens[1]
	if (first == "show" && (second == "tables" || second == "collections" || second == "datasets")) ||
		(first == "list" && second == "datasets") {
		return &model.QueryIntent{Kind: model.IntentListDatasets}, true, nil
	}
	return nil, false, nil
}

// extractDescribe matches a bare dataset name.
func extractDescribe(p *phraseContext) (*model.QueryIntent, bool, error) {
	if len(p.tokens) != 1 {
		return nil, false, nil
	}
	name := model.NormalizeName(p.tokens[0])
	if !p.known[name] {
		// A single unknown word is not recognizably a query; let the
		// final no-template-matched error report it.
		return nil, false, nil
	}
	return &model.QueryIntent{Kind: model.IntentDescribeDataset, Dataset: name}, true, nil
}

// extractCountGroup matches "count <documents|rows> in <name> grouped by <field>".
func extractCountGroup(p *phraseContext) (*model.QueryIntent, bool, error) {
	t := p.tokens
	if len(t) != 7 || t[0] != "count" || (t[1] != "documents" && t[1] != "rows") ||
		t[2] != "in" || t[4] != "grouped" || t[5] != "by" {
		return nil, false, nil
	}
	dataset, err := p.resolveDataset(t[3])
	if err != nil {
		return nil, false, err
	}
	return &model.QueryIntent{
		Kind:    model.IntentCountGroup,
		Dataset: dataset,
		GroupBy: model.NormalizeName(t[6]),
	}, true, nil
}

// extractGroupAggregateImplicit matches
// "<name>, show <field> grouped by <field2> having <field3> <cmp> <value>"
// with an implicit average aggregate.
func extractGroupAggregateImplicit(p *phraseContext) (*model.QueryIntent, bool, error) {
	t := p.tokens
	if len(t) < 10 || t[1] != "show" || t[3] != "grouped" || t[4] != "by" || t[6] != "having" {
		return nil, false, nil
	}
	op, consumed, ok := matchComparator(t[8:])
	if !ok || len(t) != 9+consumed {
		return nil, false, nil
	}
	dataset, err := p.resolveDataset(t[0])
	if err != nil {
		return nil, false, err
	}

	aggField := model.NormalizeName(t[7])
	return &model.QueryIntent{
		Kind:      model.IntentGroupAggregate,
		Dataset:   dataset,
		Fields:    []string{model.NormalizeName(t[2])},
		GroupBy:   model.NormalizeName(t[5]),
		Aggregate: &model.AggregateSpec{Fn: model.AggAvg, Field: aggField},
		Filters: []model.FilterClause{{
			Field: aggField,
			Op:    op,
			Value: parseLiteral(t[8+consumed]),
		}},
	}, true, nil
}

// extractGroupAggregate matches
// "show <field> from <name> group by <field2> having average <field3> <op> <value>".
func extractGroupAggregate(p *phraseContext) (*model.QueryIntent, bool, error) {
	t := p.tokens
	if len(t) < 12 || t[0] != "show" || t[2] != "from" || t[4] != "group" ||
		t[5] != "by" || t[7] != "having" {
		return nil, false, nil
	}

	fn, ok := aggregateWord(t[8])
	if !ok {
		return nil, false, nil
	}
	op, consumed, ok := matchComparator(t[10:])
	if !ok || len(t) != 11+consumed {
		return nil, false, nil
	}
	dataset, err := p.resolveDataset(t[3])
	if err != nil {
		return nil, false, err
	}

	aggField := model.NormalizeName(t[9])
	return &model.QueryIntent{
		Kind:      model.IntentGroupAggregate,
		Dataset:   dataset,
		Fields:    []string{model.NormalizeName(t[1])},
		GroupBy:   model.NormalizeName(t[6]),
		Aggregate: &model.AggregateSpec{Fn: fn, Field: aggField},
		Filters: []model.FilterClause{{
			Field: aggField,
			Op:    op,
			Value: parseLiteral(t[10+consumed]),
		}},
	}, true, nil
}

// aggregateWord maps aggregate phrase words to functions.
func aggregateWord(word string) (model.AggregateFn, bool) {
	switch word {
	case "average", "avg", "mean":
		return model.AggAvg, true
	case "sum", "total":
		return model.AggSum, true
	case "count":
		return model.AggCount, true
	default:
		return "", false
	}
}

// extractSelectFields matches "find <f1>, <f2>, ... in <name>". The phrase
// must end at the dataset name; trailing tokens belong to the filter
// template instead.
func extractSelectFields(p *phraseContext) (*model.QueryIntent, bool, error) {
	t := p.tokens
	if len(t) < 4 || t[0] != "find" || t[len(t)-2] != "in" {
		return nil, false, nil
	}
	fieldTokens := t[1 : len(t)-2]
	if len(fieldTokens) == 0 {
		return nil, false, nil
	}
	for _, tok := range fieldTokens {
		// "in" inside the field list means the shape is ambiguous; bail out
		if tok == "in" || tok == "which" {
			return nil, false, nil
		}
	}
	dataset, err := p.resolveDataset(t[len(t)-1])
	if err != nil {
		return nil, false, err
	}

	fields := make([]string, 0, len(fieldTokens))
	for _, tok := range fieldTokens {
		fields = append(fields, model.NormalizeName(tok))
	}
	return &model.QueryIntent{
		Kind:    model.IntentSelectFields,
		Dataset: dataset,
		Fields:  fields,
	}, true, nil
}

// extractFilterComparison matches "show <name> which <field> <cmp> <value>"
// and "find in <name> which <field> <cmp> <value>".
func extractFilterComparison(p *phraseContext) (*model.QueryIntent, bool, error) {
	t := p.tokens

	var rest []string
	var nameToken string
	switch {
	case len(t) >= 6 && t[0] == "show" && t[2] == "which":
		nameToken = t[1]
		rest = t[3:]
	case len(t) >= 7 && t[0] == "find" && t[1] == "in" && t[3] == "which":
		nameToken = t[2]
		rest = t[4:]
	default:
		return nil, false, nil
	}

	op, consumed, ok := matchComparator(rest[1:])
	if !ok || len(rest) != 1+consumed+1 {
		return nil, false, nil
	}
	dataset, err := p.resolveDataset(nameToken)
	if err != nil {
		return nil, false, err
	}

	return &model.QueryIntent{
		Kind:    model.IntentFilterComparison,
		Dataset: dataset,
		Filters: []model.FilterClause{{
			Field: model.NormalizeName(rest[0]),
			Op:    op,
			Value: parseLiteral(rest[1+consumed]),
		}},
	}, true, nil
}

// extractCountTotalGroup matches "count total <field> in <name> grouped by <field2>".
func extractCountTotalGroup(p *phraseContext) (*model.QueryIntent, bool, error) {
	t := p.tokens
	if len(t) != 8 || t[0] != "count" || t[1] != "total" || t[3] != "in" ||
		t[5] != "grouped" || t[6] != "by" {
		return nil, false, nil
	}
	dataset, err := p.resolveDataset(t[4])
	if err != nil {
		return nil, false, err
	}
	return &model.QueryIntent{
		Kind:    model.IntentCountGroup,
		Dataset: dataset,
		GroupBy: model.NormalizeName(t[7]),
	}, true, nil
}
