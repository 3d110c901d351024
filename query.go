package seqdb

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/hupe1980/seqdb/internal/parallel"
	"github.com/hupe1980/seqdb/query"
)

// Result carries the response of one query and its phase timings.
type Result struct {
	ReturnMessage string
	ParseMicros   int64
	FilterMicros  int64
	ActionMicros  int64
}

type mutationEntry struct {
	Mutation   string  `json:"mutation"`
	Proportion float64 `json:"proportion"`
	Count      uint32  `json:"count"`
}

// ExecuteQuery parses the JSON query, evaluates its filter against every
// partition in parallel, runs the action and writes the JSON response to
// resultW plus a timing line to perfW. Parse failures are returned as a
// *query.ParseError and write nothing.
func (db *Database) ExecuteQuery(queryJSON string, resultW, perfW io.Writer) (Result, error) {
	if db.Dict == nil {
		return Result{}, ErrNoDictionary
	}

	parseStart := time.Now()
	req, err := query.Parse([]byte(queryJSON), db.Dict, db.Aliases, db.GenomeLength())
	parseTime := time.Since(parseStart)
	if err != nil {
		return Result{}, err
	}

	filterStart := time.Now()
	filters := make([]query.Filter, len(db.Partitions))
	err = parallel.ForEach(len(db.Partitions), db.opts.workers, func(i int) error {
		p := db.Partitions[i]
		filters[i] = query.Evaluate(query.Simplify(req.Filter, p), db.Dict, p)
		return nil
	})
	filterTime := time.Since(filterStart)
	if err != nil {
		return Result{}, err
	}

	actionStart := time.Now()
	var payload any
	switch req.Action.Type {
	case "count":
		payload = map[string]uint64{"count": query.Count(filters)}
	case "mutations":
		muts := query.Mutations(db.Reference[0], db.Partitions, filters, req.Action.MinProportion)
		entries := make([]mutationEntry, 0, len(muts))
		for _, m := range muts {
			entries = append(entries, mutationEntry{
				Mutation:   fmt.Sprintf("%c%d%c", m.From, m.Pos, m.To),
				Proportion: m.Proportion,
				Count:      m.Count,
			})
		}
		payload = entries
	}
	actionTime := time.Since(actionStart)

	msg, err := json.Marshal(payload)
	if err != nil {
		return Result{}, err
	}
	if resultW != nil {
		if _, err := fmt.Fprintf(resultW, "%s\n", msg); err != nil {
			return Result{}, err
		}
	}
	if perfW != nil {
		fmt.Fprintf(perfW, "parse: %dus, filter: %dus, action: %dus\n",
			parseTime.Microseconds(), filterTime.Microseconds(), actionTime.Microseconds())
	}
	db.opts.logger.LogQuery(req.Action.Type, parseTime, filterTime, actionTime)

	return Result{
		ReturnMessage: string(msg),
		ParseMicros:   parseTime.Microseconds(),
		FilterMicros:  filterTime.Microseconds(),
		ActionMicros:  actionTime.Microseconds(),
	}, nil
}
