package application

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ahrav/go-triage/internal/domain"
	"github.com/ahrav/go-triage/internal/logging"
	"github.com/ahrav/go-triage/internal/ports"
)

// Semantic lookup outcomes, used as the status metric label.
const (
	lookupOK          = "ok"
	lookupTimeout     = "timeout"
	lookupError       = "error"
	lookupUnavailable = "unavailable"
)

// SemanticLookup runs the similarity search for a case under a time
// budget before evaluation. Any failure yields nil matches, which the
// engine treats as the search being unavailable; it is never an error.
type SemanticLookup struct {
	searcher ports.SimilaritySearcher
	config   SemanticLookupConfig
	logger   *slog.Logger
	metrics  ports.MetricsCollector
}

// NewSemanticLookup returns a lookup over searcher. A nil searcher is
// allowed and makes every lookup unavailable. A nil metrics collector
// disables metrics.
func NewSemanticLookup(searcher ports.SimilaritySearcher, cfg SemanticLookupConfig, metrics ports.MetricsCollector) *SemanticLookup {
	if metrics == nil {
		metrics = ports.NoopMetrics{}
	}
	return &SemanticLookup{
		searcher: searcher,
		config:   cfg,
		logger:   logging.New("semantic-lookup"),
		metrics:  metrics,
	}
}

// Lookup searches for entities similar to the case text. It returns nil
// when no searcher is configured, the case has no text, the search fails,
// or the budget elapses. An empty, non-nil slice means the search ran and
// found nothing.
func (l *SemanticLookup) Lookup(ctx context.Context, c domain.Case) []domain.SimilarityMatch {
	text := c.Text()
	if l.searcher == nil || text == "" {
		l.count(lookupUnavailable)
		return nil
	}

	matches, err := searchWithin(ctx, l.searcher, text, l.config.TopK, l.config.Budget)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		l.logger.WarnContext(ctx, "semantic lookup exceeded budget",
			slog.Duration("budget", l.config.Budget))
		l.count(lookupTimeout)
		return nil
	case err != nil:
		l.logger.WarnContext(ctx, "semantic lookup failed", slog.Any("error", err))
		l.count(lookupError)
		return nil
	}

	l.count(lookupOK)
	if matches == nil {
		matches = []domain.SimilarityMatch{}
	}
	return matches
}

// Enrich returns in with Semantic filled from Lookup. Input that already
// carries semantic matches is returned unchanged.
func (l *SemanticLookup) Enrich(ctx context.Context, in domain.Input) domain.Input {
	if in.Semantic != nil {
		return in
	}
	in.Semantic = l.Lookup(ctx, in.Case)
	return in
}

func (l *SemanticLookup) count(status string) {
	l.metrics.RecordCounter(ports.MetricSemanticLookups, 1, map[string]string{"status": status})
}

// LookupSemantic is a one-shot Lookup with the given top-k and budget and
// no metrics.
func LookupSemantic(ctx context.Context, searcher ports.SimilaritySearcher, c domain.Case, k int, budget time.Duration) []domain.SimilarityMatch {
	return NewSemanticLookup(searcher, SemanticLookupConfig{TopK: k, Budget: budget}, nil).Lookup(ctx, c)
}

// searchWithin runs the search on its own goroutine so a searcher that
// ignores cancellation cannot hold the caller past the budget.
func searchWithin(
	ctx context.Context,
	searcher ports.SimilaritySearcher,
	text string,
	k int,
	budget time.Duration,
) ([]domain.SimilarityMatch, error) {
	if budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, budget)
		defer cancel()
	}

	type result struct {
		matches []domain.SimilarityMatch
		err     error
	}
	done := make(chan result, 1)
	go func() {
		m, err := searcher.Search(ctx, text, k)
		done <- result{matches: m, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return res.matches, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
