package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/seqdb/dict"
	"github.com/hupe1980/seqdb/symbol"
)

func parseDict(t *testing.T) (*dict.Dictionary, dict.AliasMap) {
	t.Helper()
	d := dict.New("division")
	d.AddLineage("B.1.1.529")
	d.AddLineage("B.1.1.529.5")
	d.AddCountry("Germany")
	d.AddRegion("Europe")
	d.AddGeneral("Bavaria")
	return d, dict.AliasMap{"BA": "B.1.1.529"}
}

func TestParseCountQuery(t *testing.T) {
	d, aliases := parseDict(t)

	req, err := Parse([]byte(`{
		"action": {"type": "count"},
		"filter": {
			"type": "and",
			"children": [
				{"type": "nucleotideEquals", "position": 241, "symbol": "T"},
				{"type": "pangoLineage", "lineage": "BA.5", "includeSublineages": true},
				{"type": "country", "country": "Germany"},
				{"type": "dateBetween", "from": "2021-01-01", "to": "2021-12-31"}
			]
		}
	}`), d, aliases, 29903)
	require.NoError(t, err)
	assert.Equal(t, "count", req.Action.Type)

	and, ok := req.Filter.(*And)
	require.True(t, ok)
	require.Len(t, and.Children, 4)

	nuc := and.Children[0].(*NucEq)
	assert.Equal(t, 241, nuc.Pos)
	assert.Equal(t, symbol.T, nuc.Sym)

	lin := and.Children[1].(*Lineage)
	assert.Equal(t, d.LineageID("B.1.1.529.5"), lin.ID, "alias is resolved before lookup")
	assert.True(t, lin.IncludeSub)

	country := and.Children[2].(*Country)
	assert.Equal(t, d.CountryID("Germany"), country.ID)

	date := and.Children[3].(*DateBetween)
	assert.False(t, date.OpenFrom)
	assert.False(t, date.OpenTo)
	assert.Less(t, date.From, date.To)
}

func TestParseMutationsAction(t *testing.T) {
	d, aliases := parseDict(t)

	req, err := Parse([]byte(`{
		"action": {"type": "mutations", "minProportion": 0.05},
		"filter": {"type": "true"}
	}`), d, aliases, 100)
	require.NoError(t, err)
	assert.Equal(t, "mutations", req.Action.Type)
	assert.Equal(t, 0.05, req.Action.MinProportion)
	assert.Equal(t, Full{}, req.Filter)
}

func TestParseNodeKinds(t *testing.T) {
	d, aliases := parseDict(t)

	tests := []struct {
		name string
		json string
		want any
	}{
		{"false", `{"type": "false"}`, Empty{}},
		{"not", `{"type": "not", "child": {"type": "true"}}`, &Neg{Child: Full{}}},
		{"maybe", `{"type": "nucleotideMaybe", "position": 2, "symbol": "R"}`, &NucMaybe{Pos: 2, Sym: symbol.R}},
		{"region", `{"type": "region", "region": "Europe"}`, &Region{ID: 0}},
		{"strEq", `{"type": "stringEquals", "column": "division", "value": "Bavaria"}`, &StrEq{Column: "division", Value: "Bavaria"}},
		{"dateOpen", `{"type": "dateBetween", "to": "2022-01-01"}`, &DateBetween{To: date(t, "2022-01-01"), OpenFrom: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := Parse([]byte(`{"action":{"type":"count"},"filter":`+tt.json+`}`), d, aliases, 100)
			require.NoError(t, err)
			assert.Equal(t, tt.want, req.Filter)
		})
	}
}

func TestParseNOf(t *testing.T) {
	d, aliases := parseDict(t)

	req, err := Parse([]byte(`{
		"action": {"type": "count"},
		"filter": {"type": "nof", "n": 2, "exactly": true, "impl": "heap", "children": [
			{"type": "nucleotideEquals", "position": 1, "symbol": "A"},
			{"type": "nucleotideEquals", "position": 2, "symbol": "C"},
			{"type": "nucleotideEquals", "position": 3, "symbol": "G"}
		]}
	}`), d, aliases, 10)
	require.NoError(t, err)

	nof := req.Filter.(*NOf)
	assert.Equal(t, 2, nof.N)
	assert.True(t, nof.Exactly)
	assert.Equal(t, NOfHeap, nof.Impl)
	assert.Len(t, nof.Children, 3)
}

func TestParseUnknownDictionaryEntriesFoldToEmpty(t *testing.T) {
	d, aliases := parseDict(t)
	_, p := buildPartition(t, []string{"A"}, nil)

	req, err := Parse([]byte(`{
		"action": {"type": "count"},
		"filter": {"type": "or", "children": [
			{"type": "pangoLineage", "lineage": "ZZ.9"},
			{"type": "country", "country": "Atlantis"},
			{"type": "region", "region": "Mordor"}
		]}
	}`), d, aliases, 1)
	require.NoError(t, err, "dictionary misses are not parse errors")

	assert.Equal(t, Empty{}, Simplify(req.Filter, p))
}

func TestParseErrors(t *testing.T) {
	d, aliases := parseDict(t)

	tests := []struct {
		name string
		json string
	}{
		{"malformed", `{`},
		{"missingAction", `{"filter": {"type": "true"}}`},
		{"unknownAction", `{"action": {"type": "frobnicate"}, "filter": {"type": "true"}}`},
		{"missingFilter", `{"action": {"type": "count"}}`},
		{"unknownNode", `{"action": {"type": "count"}, "filter": {"type": "wat"}}`},
		{"positionOutOfRange", `{"action": {"type": "count"}, "filter": {"type": "nucleotideEquals", "position": 101, "symbol": "A"}}`},
		{"positionZero", `{"action": {"type": "count"}, "filter": {"type": "nucleotideEquals", "position": 0, "symbol": "A"}}`},
		{"badSymbol", `{"action": {"type": "count"}, "filter": {"type": "nucleotideEquals", "position": 1, "symbol": "Q"}}`},
		{"badDate", `{"action": {"type": "count"}, "filter": {"type": "dateBetween", "from": "yesterday"}}`},
		{"nofWithoutN", `{"action": {"type": "count"}, "filter": {"type": "nof", "children": []}}`},
		{"badProportion", `{"action": {"type": "mutations", "minProportion": 1.5}, "filter": {"type": "true"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.json), d, aliases, 100)
			require.Error(t, err)
			var pe *ParseError
			assert.ErrorAs(t, err, &pe)
		})
	}
}
