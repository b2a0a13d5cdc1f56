// Package loadgen drives a running service over HTTP: it submits generated
// task events, waits for the workers to drain the queue and checks that
// every resulting score is within bounds.
package loadgen

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/perfscore/internal/domain/model"
	"github.com/okian/perfscore/pkg/logger"
)

const settlePollInterval = 100 * time.Millisecond

// ErrOutOfRange is returned when a retrieved score is outside [0, 100].
var ErrOutOfRange = errors.New("score out of range")

// Run executes one load run against cfg.BaseURL.
func Run(ctx context.Context, cfg *Config, log logger.Logger) (*Stats, error) {
	start := time.Now()
	stats := &Stats{MinScore: math.Inf(1), MaxScore: math.Inf(-1)}
	client := newHTTPClient(cfg.Timeout)

	log.Info(ctx, "starting load run",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("users", cfg.Users),
		logger.Int("eventsPerUser", cfg.EventsPerUser),
		logger.Int("workers", cfg.Workers),
	)

	if err := client.getJSON(ctx, cfg.BaseURL+"/healthz", nil); err != nil {
		return nil, fmt.Errorf("service health check failed: %w", err)
	}

	events := Generate(cfg, time.Now().UTC())
	stats.EventsGenerated = len(events)
	submit(ctx, client, cfg, events, stats)

	if err := settle(ctx, client, cfg, stats.EventsAccepted); err != nil {
		log.Warn(ctx, "queue did not drain", logger.Error(err))
	}

	if err := collect(ctx, client, cfg, stats); err != nil {
		return stats, err
	}
	stats.Duration = time.Since(start)

	log.Info(ctx, "load run finished",
		logger.Int("submitted", stats.EventsSubmitted),
		logger.Int("accepted", stats.EventsAccepted),
		logger.Int("duplicate", stats.EventsDuplicate),
		logger.Int("failed", stats.EventsFailed),
		logger.Int("scores", stats.ScoresRetrieved),
		logger.Float64("minScore", stats.MinScore),
		logger.Float64("maxScore", stats.MaxScore),
		logger.Duration("took", stats.Duration),
	)
	if stats.ScoresOutOfRange > 0 {
		return stats, fmt.Errorf("%w: %d records", ErrOutOfRange, stats.ScoresOutOfRange)
	}
	return stats, nil
}

// submit posts events from cfg.Workers goroutines. Each user is pinned to one
// worker, so a user's events are posted in generation order. The service's
// workers may still apply them in any order.
func submit(ctx context.Context, client *httpClient, cfg *Config, events []model.TaskEvent, stats *Stats) {
	workers := max(cfg.Workers, 1)
	lanes := make([]chan model.TaskEvent, workers)
	for i := range lanes {
		lanes[i] = make(chan model.TaskEvent, workers*2)
	}

	var accepted, duplicate, failed, submitted atomic.Int64
	var wg sync.WaitGroup
	target := cfg.BaseURL + "/events"
	for i := range lanes {
		wg.Add(1)
		go func(lane <-chan model.TaskEvent) {
			defer wg.Done()
			for ev := range lane {
				submitted.Add(1)
				code, _, err := client.postJSON(ctx, target, ev)
				switch {
				case err != nil:
					failed.Add(1)
				case code == http.StatusAccepted:
					accepted.Add(1)
				case code == http.StatusOK:
					duplicate.Add(1)
				default:
					failed.Add(1)
				}
			}
		}(lanes[i])
	}

	lane := make(map[string]int)
	for _, ev := range events {
		idx, ok := lane[ev.UserID]
		if !ok {
			idx = len(lane) % workers
			lane[ev.UserID] = idx
		}
		select {
		case <-ctx.Done():
		case lanes[idx] <- ev:
		}
	}
	for _, l := range lanes {
		close(l)
	}
	wg.Wait()

	stats.EventsSubmitted = int(submitted.Load())
	stats.EventsAccepted = int(accepted.Load())
	stats.EventsDuplicate = int(duplicate.Load())
	stats.EventsFailed = int(failed.Load())
}

// settle polls /stats until the queue is empty and the workers have
// handled at least want events, or cfg.Settle passes.
func settle(ctx context.Context, client *httpClient, cfg *Config, want int) error {
	ctx, cancel := context.WithTimeout(ctx, cfg.Settle)
	defer cancel()
	ticker := time.NewTicker(settlePollInterval)
	defer ticker.Stop()

	for {
		var stats map[string]any
		if err := client.getJSON(ctx, cfg.BaseURL+"/stats", &stats); err == nil {
			queued, _ := stats["queueLength"].(float64)
			handled, _ := stats["eventsHandled"].(float64)
			if queued == 0 && int(handled) >= want {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// collect reads every user's team-less and team score.
func collect(ctx context.Context, client *httpClient, cfg *Config, stats *Stats) error {
	for u := 0; u < cfg.Users; u++ {
		userID := fmt.Sprintf("user-%04d", u)
		for _, team := range []string{"", cfg.TeamID} {
			var ps model.PerformanceScore
			target := cfg.BaseURL + "/scores/" + url.PathEscape(userID)
			if team != "" {
				target += "?team=" + url.QueryEscape(team)
			}
			if err := client.getJSON(ctx, target, &ps); err != nil {
				return fmt.Errorf("score of %s: %w", userID, err)
			}
			stats.ScoresRetrieved++
			stats.MinScore = math.Min(stats.MinScore, ps.Score)
			stats.MaxScore = math.Max(stats.MaxScore, ps.Score)
			if ps.Score < model.MinScore || ps.Score > model.MaxScore {
				stats.ScoresOutOfRange++
			}
		}
	}
	return nil
}
