package analyze

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"

	"github.com/datachat/datachat/internal/config"
	"github.com/datachat/datachat/internal/dataset"
)

// Router classifies data queries and dispatches them to the
// deterministic or the AI analyzer. It owns the per-conversation
// analyzer state cache.
type Router struct {
	classifier Classifier
	simple     *SimpleAnalyzer
	engine     Engine // nil when no AI backend is configured
	states     *StateCache
	cfg        config.AnalyzerConfig
}

// NewRouter creates a query router. engine may be nil, in which case
// every query is served deterministically.
func NewRouter(classifier Classifier, engine Engine, cfg config.AnalyzerConfig) *Router {
	if classifier == nil {
		classifier = NewKeywordClassifier()
	}
	return &Router{
		classifier: classifier,
		simple:     NewSimpleAnalyzer(),
		engine:     engine,
		states:     NewStateCache(),
		cfg:        cfg,
	}
}

// Route exposes the classification decision for a query.
func (r *Router) Route(query string) Classification {
	return r.classifier.Classify(query)
}

// States exposes the analyzer state cache for lifecycle management
// (invalidation on dataset upload, diagnostics).
func (r *Router) States() *StateCache {
	return r.states
}

// Analyze routes the query and returns a uniform result envelope. A
// failed AI call falls back to the deterministic analyzer once when the
// query carries a recognizable simple intent; otherwise the failure is
// surfaced in the envelope.
func (r *Router) Analyze(ctx context.Context, ds *dataset.Dataset, query, conversationID string) Result {
	meta := Metadata{
		Query:          query,
		ConversationID: conversationID,
		DatasetRows:    ds.NumRows(),
	}

	if r.Route(query) == Complex && r.engine != nil {
		result, err := r.analyzeAI(ctx, ds, query, conversationID, &meta)
		if err == nil {
			return result
		}
		log.Warn("AI analysis failed", "conversation", conversationID, "error", err)

		if !HasSimpleIntent(query) {
			return errorResult(err.Error(), meta)
		}
		meta.Path = PathFallback
		return r.analyzeSimple(ds, query, meta)
	}

	meta.Path = PathSimple
	return r.analyzeSimple(ds, query, meta)
}

func (r *Router) analyzeSimple(ds *dataset.Dataset, query string, meta Metadata) Result {
	kind, payload, err := r.simple.Analyze(ds, query)
	if err != nil {
		return errorResult(err.Error(), meta)
	}
	return successResult(kind, payload, meta)
}

func (r *Router) analyzeAI(ctx context.Context, ds *dataset.Dataset, query, conversationID string, meta *Metadata) (Result, error) {
	state, err := r.states.GetOrInit(conversationID, func() (*State, error) {
		return r.buildState(ds, conversationID), nil
	})
	if err != nil {
		return Result{}, err
	}
	meta.Sampled = state.Sampled

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	answer, err := r.engine.Analyze(ctx, state, query)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Result{}, errors.New("analysis timed out after " + r.cfg.Timeout.String())
		}
		return Result{}, err
	}

	meta.Path = PathAI
	return successResult("ai_analysis", answer, *meta), nil
}

// buildState prepares the reusable analyzer state: datasets over the
// row threshold are replaced by a fixed-seed sample so cost stays
// bounded and results stay reproducible.
func (r *Router) buildState(ds *dataset.Dataset, conversationID string) *State {
	sourceRows := ds.NumRows()
	sampled := false
	if sourceRows > r.cfg.MaxRows {
		ds = ds.Sample(r.cfg.MaxRows, r.cfg.SampleSeed)
		sampled = true
		log.Info("dataset sampled for AI analysis",
			"conversation", conversationID, "from", sourceRows, "to", ds.NumRows())
	}

	return &State{
		ConversationID: conversationID,
		Data:           ds,
		SourceRows:     sourceRows,
		Sampled:        sampled,
		SchemaPrompt:   BuildSchemaPrompt(ds),
		CreatedAt:      time.Now(),
	}
}
