package filter

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/arthur-debert/nanotags/nanotags/query"
	"github.com/arthur-debert/nanotags/nanotags/store"
	"github.com/arthur-debert/nanotags/types"
)

// Phases of GenerateFilter, as reported to an Observer
const (
	PhaseRapid    = "rapid"
	PhaseAdvanced = "advanced"
)

// Database is the part of the store GenerateFilter reads from.
// *store.DB satisfies it.
type Database interface {
	Read(fn func(store.Session) error) error
}

// Observer receives the duration and result size of each phase
type Observer interface {
	ObservePhase(phase string, elapsed time.Duration, results int)
}

// EvalOption configures GenerateFilter
type EvalOption func(*evalConfig)

type evalConfig struct {
	observer Observer
	logger   *slog.Logger
}

// WithObserver reports phase timings to o
func WithObserver(o Observer) EvalOption {
	return func(c *evalConfig) {
		c.observer = o
	}
}

// WithLogger sets the logger receiving compiled expressions
func WithLogger(l *slog.Logger) EvalOption {
	return func(c *evalConfig) {
		c.logger = l
	}
}

// GenerateFilter returns the scans among scans selected by the filter, in
// store order. The rapid search runs over scans and the advanced search
// over the rapid result, inside a single read session. tags are the tags
// the rapid search and "all fields" rows look into.
func (f *Filter) GenerateFilter(db Database, scans, tags []string, opts ...EvalOption) ([]string, error) {
	var result []string
	err := db.Read(func(s store.Session) error {
		var err error
		result, err = f.Evaluate(s, scans, tags, opts...)
		return err
	})
	return result, err
}

// Evaluate is GenerateFilter inside a session the caller already holds,
// for callers that read scans and tags from the same snapshot.
func (f *Filter) Evaluate(s store.Session, scans, tags []string, opts ...EvalOption) ([]string, error) {
	cfg := evalConfig{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}

	var rapid query.Expr
	if f.SearchBar == NotDefined {
		rapid = PrepareNotDefinedFilter(tags, scans)
	} else {
		rapid = PrepareFilter(f.SearchBar, tags, scans)
	}
	rapidList, err := f.run(s, cfg, PhaseRapid, rapid)
	if err != nil {
		return nil, fmt.Errorf("filter %q: %w", f.Name, err)
	}

	advanced, err := PrepareFilters(f.Links, f.Fields, f.Conditions, f.Values, f.Nots, Scope{
		Scans:       rapidList,
		VisibleTags: tags,
		FieldTypes:  fieldTypes(s),
	})
	if err != nil {
		return nil, fmt.Errorf("filter %q: %w", f.Name, err)
	}
	result, err := f.run(s, cfg, PhaseAdvanced, advanced)
	if err != nil {
		return nil, fmt.Errorf("filter %q: %w", f.Name, err)
	}
	return result, nil
}

func (f *Filter) run(s store.Session, cfg evalConfig, phase string, expr query.Expr) ([]string, error) {
	start := time.Now()
	text := query.Render(expr)
	cfg.logger.Debug("filter query", "filter", f.Name, "phase", phase, "query", text)

	docs, err := s.FilterDocuments(types.CollectionCurrent, text)
	if err != nil {
		return nil, err
	}
	keys := make([]string, len(docs))
	for i, doc := range docs {
		keys[i] = doc.Key
	}

	if cfg.observer != nil {
		cfg.observer.ObservePhase(phase, time.Since(start), len(keys))
	}
	return keys, nil
}

func fieldTypes(s store.Session) map[string]types.FieldType {
	fields := s.GetFields(types.CollectionCurrent)
	out := make(map[string]types.FieldType, len(fields))
	for _, field := range fields {
		out[field.Name] = field.Type
	}
	return out
}
