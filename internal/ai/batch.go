package ai

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/grant-recommender/internal/grants"
	"github.com/spigell/grant-recommender/internal/utils"
)

const (
	DefaultWindow = 5
	DefaultPause  = 300 * time.Millisecond
)

// Batcher scores many grants with a Judge in fixed-size concurrent windows and pauses
// between windows to stay under provider rate limits.
type Batcher struct {
	judge  Judge
	window int
	pause  time.Duration
	logger *zap.Logger
	// wait sleeps between windows.
	wait func(context.Context, time.Duration) error
}

func NewBatcher(judge Judge, window int, pause time.Duration, logger *zap.Logger) *Batcher {
	if window <= 0 {
		window = DefaultWindow
	}
	if pause < 0 {
		pause = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Batcher{judge: judge, window: window, pause: pause, logger: logger, wait: utils.WaitFor}
}

// BatchScore returns the scores keyed by grant id. Failed judgments are logged and
// omitted; they are never retried and never abort the batch.
func (b *Batcher) BatchScore(ctx context.Context, project *grants.Project, items []*grants.Grant) map[string]*RelevanceScore {
	results := make(map[string]*RelevanceScore, len(items))
	if b == nil || b.judge == nil {
		if b != nil {
			b.logger.Warn("llm judge is not configured; skipping relevance scoring")
		}
		return results
	}

	var mu sync.Mutex
	for start := 0; start < len(items); start += b.window {
		end := min(start+b.window, len(items))

		var wg sync.WaitGroup
		for _, grant := range items[start:end] {
			wg.Add(1)
			go func(grant *grants.Grant) {
				defer wg.Done()

				score, err := b.judge.Score(ctx, project, grant)
				if err != nil {
					b.logger.Warn("llm relevance scoring failed",
						zap.String("grant_id", grant.ID),
						zap.Error(err),
					)
					return
				}
				if score == nil {
					return
				}

				mu.Lock()
				results[grant.ID] = score
				mu.Unlock()
			}(grant)
		}
		wg.Wait()

		if end < len(items) {
			if err := b.wait(ctx, b.pause); err != nil {
				b.logger.Warn("llm batch interrupted",
					zap.Int("scored", len(results)),
					zap.Int("remaining", len(items)-end),
					zap.Error(err),
				)
				break
			}
		}
	}

	return results
}
