package googlebooks

import (
	"context"

	"go.uber.org/zap"

	"github.com/nuggetapp/nugget-back/internal/config"
	"github.com/nuggetapp/nugget-back/internal/debounce"
)

type (
	// SearchResult pairs a lookup outcome with the query that produced it.
	// Results can arrive out of order when the API is slow; stale ones are
	// dropped before they reach the consumer.
	SearchResult struct {
		Query   string
		Volumes []Volume
		Err     error
	}

	// SearchRelay debounces a stream of query updates and runs one metadata
	// lookup per settled query. An in-flight lookup superseded by a newer
	// settled query is not aborted, its result is discarded on arrival.
	SearchRelay struct {
		client     *Client
		debouncer  *debounce.Debouncer[string]
		maxResults int
		logger     *zap.SugaredLogger
		results    chan SearchResult
	}
)

func NewSearchRelay(cfg *config.Config, client *Client, logger *zap.SugaredLogger) *SearchRelay {
	return &SearchRelay{
		client:     client,
		debouncer:  debounce.New[string](cfg.SearchDebounce),
		maxResults: defaultMaxResults,
		logger:     logger,
		results:    make(chan SearchResult, 1),
	}
}

// Update feeds the relay the current search box value.
func (r *SearchRelay) Update(query string) {
	r.debouncer.Set(query)
}

// Results delivers at most one outcome per settled query, always the freshest.
func (r *SearchRelay) Results() <-chan SearchResult {
	return r.results
}

// Run consumes settled queries until ctx is done. Intended to be started once
// per consumer, typically in a goroutine.
func (r *SearchRelay) Run(ctx context.Context) {
	defer r.debouncer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-r.debouncer.C():
			volumes, err := r.client.Search(ctx, e.Value, r.maxResults)
			if !r.debouncer.Latest(e.Generation) {
				continue
			}
			if err != nil {
				r.logger.Errorw("metadata search", "query", e.Value, "error", err)
			}
			r.deliver(SearchResult{Query: e.Value, Volumes: volumes, Err: err})
		}
	}
}

func (r *SearchRelay) deliver(res SearchResult) {
	select {
	case <-r.results:
	default:
	}
	r.results <- res
}
