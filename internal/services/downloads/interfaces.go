package downloads

import (
	"context"

	"github.com/podforge/digest-api/internal/catalog"
	"github.com/podforge/digest-api/internal/models"
	"github.com/podforge/digest-api/internal/services/sources"
	errs "github.com/podforge/digest-api/pkg/errors"
)

// Request is one download attempt handed to a strategy. Candidates carry
// the source finder's ordered URLs; OutputPath is owned by the caller.
type Request struct {
	Podcast    *catalog.Podcast
	Episode    *models.Episode
	Candidates []sources.Candidate
	OutputPath string
}

// Strategy is one independent way of producing an episode's audio file.
type Strategy interface {
	// Name returns the strategy's registry name (catalog vocabulary).
	Name() string

	// CanHandle reports whether the strategy applies to the advertised
	// URL and podcast. A false here removes it from the chain silently.
	CanHandle(url string, podcast *catalog.Podcast) bool

	// Download writes audio to req.OutputPath or fails. Validation of
	// the produced file belongs to the router, not the strategy.
	Download(ctx context.Context, req Request) error
}

// Router produces exactly one validated audio file per episode.
type Router interface {
	Download(ctx context.Context, podcast *catalog.Podcast, episode *models.Episode, candidates []sources.Candidate, outputPath string, mode models.Mode) error
}

// HistoryStore persists MRU strategy successes per podcast.
type HistoryStore interface {
	RecordStrategy(ctx context.Context, podcast, strategy string) error
	StrategyHistory(ctx context.Context, podcast string) ([]string, error)
}

// FailureRecorder receives per-attempt failures.
type FailureRecorder interface {
	RecordFailure(ctx context.Context, component string, key models.EpisodeKey, kind errs.Kind, message string, retries int, mode models.Mode)
}

// Registry maps strategy names to implementations. Chains are built by
// name; unregistered names drop out of the chain.
type Registry struct {
	strategies map[string]Strategy
	order      []string
}

func NewRegistry(strategies ...Strategy) *Registry {
	r := &Registry{strategies: make(map[string]Strategy, len(strategies))}
	for _, st := range strategies {
		r.Register(st)
	}
	return r
}

// Register adds or replaces a strategy under its name.
func (r *Registry) Register(st Strategy) {
	if _, exists := r.strategies[st.Name()]; !exists {
		r.order = append(r.order, st.Name())
	}
	r.strategies[st.Name()] = st
}

// Get returns the strategy registered under name.
func (r *Registry) Get(name string) (Strategy, bool) {
	st, ok := r.strategies[name]
	return st, ok
}

// Names returns the registered names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}
