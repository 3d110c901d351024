package query

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hupe1980/seqdb/dict"
	"github.com/hupe1980/seqdb/symbol"
)

// ParseError describes a malformed query. It is the only error class the
// parser returns; unknown dictionary entries are not errors but fold to
// expressions matching nothing.
type ParseError struct {
	Msg string
}

func (e *ParseError) Error() string { return "query parse error: " + e.Msg }

func parseErrorf(format string, args ...any) error {
	return &ParseError{Msg: fmt.Sprintf(format, args...)}
}

// Request is a decoded query: an action applied to the sequences matching
// the filter.
type Request struct {
	Action Action
	Filter Expr
}

// Action selects what to compute over the matching set.
type Action struct {
	Type          string // "count" or "mutations"
	MinProportion float64
}

type rawQuery struct {
	Action *rawAction      `json:"action"`
	Filter json.RawMessage `json:"filter"`
}

type rawAction struct {
	Type          string   `json:"type"`
	MinProportion *float64 `json:"minProportion"`
}

type rawNode struct {
	Type string `json:"type"`

	Children []json.RawMessage `json:"children"`
	Child    json.RawMessage   `json:"child"`

	N       *int   `json:"n"`
	Exactly bool   `json:"exactly"`
	Impl    string `json:"impl"`

	From *string `json:"from"`
	To   *string `json:"to"`

	Position int    `json:"position"`
	Symbol   string `json:"symbol"`

	Lineage            string `json:"lineage"`
	IncludeSublineages bool   `json:"includeSublineages"`

	Country string `json:"country"`
	Region  string `json:"region"`

	Column string `json:"column"`
	Value  string `json:"value"`
}

// Parse decodes the JSON query format:
//
//	{"action": {"type": "count"}, "filter": {...}}
//	{"action": {"type": "mutations", "minProportion": 0.05}, "filter": {...}}
//
// Filter nodes carry a "type" of and, or, not, nof, dateBetween,
// nucleotideEquals, nucleotideMaybe, pangoLineage, country, region,
// stringEquals, true or false. Lineage names are alias-resolved; names,
// countries and regions unknown to the dictionary yield filters matching
// nothing.
func Parse(data []byte, d *dict.Dictionary, aliases dict.AliasMap, genomeLength int) (*Request, error) {
	var raw rawQuery
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, parseErrorf("invalid JSON: %v", err)
	}
	if raw.Action == nil {
		return nil, parseErrorf("missing action")
	}

	action := Action{Type: raw.Action.Type}
	switch raw.Action.Type {
	case "count":
	case "mutations":
		if raw.Action.MinProportion != nil {
			action.MinProportion = *raw.Action.MinProportion
		}
		if action.MinProportion < 0 || action.MinProportion > 1 {
			return nil, parseErrorf("minProportion %v out of [0,1]", action.MinProportion)
		}
	default:
		return nil, parseErrorf("unknown action type %q", raw.Action.Type)
	}

	if len(raw.Filter) == 0 {
		return nil, parseErrorf("missing filter")
	}
	filter, err := parseNode(raw.Filter, d, aliases, genomeLength)
	if err != nil {
		return nil, err
	}
	return &Request{Action: action, Filter: filter}, nil
}

func parseNode(data json.RawMessage, d *dict.Dictionary, aliases dict.AliasMap, genomeLength int) (Expr, error) {
	var raw rawNode
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, parseErrorf("invalid filter node: %v", err)
	}

	parseChildren := func() ([]Expr, error) {
		children := make([]Expr, 0, len(raw.Children))
		for _, c := range raw.Children {
			child, err := parseNode(c, d, aliases, genomeLength)
			if err != nil {
				return nil, err
			}
			children = append(children, child)
		}
		return children, nil
	}

	switch raw.Type {
	case "true":
		return Full{}, nil
	case "false":
		return Empty{}, nil

	case "and":
		children, err := parseChildren()
		if err != nil {
			return nil, err
		}
		return &And{Children: children}, nil

	case "or":
		children, err := parseChildren()
		if err != nil {
			return nil, err
		}
		return &Or{Children: children}, nil

	case "not":
		if len(raw.Child) == 0 {
			return nil, parseErrorf("not: missing child")
		}
		child, err := parseNode(raw.Child, d, aliases, genomeLength)
		if err != nil {
			return nil, err
		}
		return &Neg{Child: child}, nil

	case "nof":
		if raw.N == nil || *raw.N < 0 {
			return nil, parseErrorf("nof: missing or negative n")
		}
		children, err := parseChildren()
		if err != nil {
			return nil, err
		}
		impl := NOfNaive
		switch raw.Impl {
		case "", "naive":
		case "merge":
			impl = NOfMerge
		case "heap":
			impl = NOfHeap
		default:
			return nil, parseErrorf("nof: unknown impl %q", raw.Impl)
		}
		return &NOf{Children: children, N: *raw.N, Exactly: raw.Exactly, Impl: impl}, nil

	case "dateBetween":
		node := &DateBetween{OpenFrom: raw.From == nil, OpenTo: raw.To == nil}
		if raw.From != nil {
			ts, err := parseDate(*raw.From)
			if err != nil {
				return nil, err
			}
			node.From = ts
		}
		if raw.To != nil {
			ts, err := parseDate(*raw.To)
			if err != nil {
				return nil, err
			}
			node.To = ts
		}
		return node, nil

	case "nucleotideEquals", "nucleotideMaybe":
		if raw.Position < 1 || raw.Position > genomeLength {
			return nil, parseErrorf("%s: position %d out of [1,%d]", raw.Type, raw.Position, genomeLength)
		}
		if len(raw.Symbol) != 1 {
			return nil, parseErrorf("%s: symbol %q", raw.Type, raw.Symbol)
		}
		sym, ok := symbol.FromByte(raw.Symbol[0])
		if !ok {
			return nil, parseErrorf("%s: unknown symbol %q", raw.Type, raw.Symbol)
		}
		if raw.Type == "nucleotideEquals" {
			return &NucEq{Pos: raw.Position, Sym: sym}, nil
		}
		return &NucMaybe{Pos: raw.Position, Sym: sym}, nil

	case "pangoLineage":
		if raw.Lineage == "" {
			return nil, parseErrorf("pangoLineage: missing lineage")
		}
		id := d.LineageID(aliases.Resolve(raw.Lineage))
		return &Lineage{ID: id, IncludeSub: raw.IncludeSublineages}, nil

	case "country":
		if raw.Country == "" {
			return nil, parseErrorf("country: missing country")
		}
		return &Country{ID: d.CountryID(raw.Country)}, nil

	case "region":
		if raw.Region == "" {
			return nil, parseErrorf("region: missing region")
		}
		return &Region{ID: d.RegionID(raw.Region)}, nil

	case "stringEquals":
		if raw.Column == "" {
			return nil, parseErrorf("stringEquals: missing column")
		}
		return &StrEq{Column: raw.Column, Value: raw.Value}, nil

	default:
		return nil, parseErrorf("unknown filter type %q", raw.Type)
	}
}

func parseDate(s string) (int64, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return 0, parseErrorf("bad date %q: %v", s, err)
	}
	return t.Unix(), nil
}
