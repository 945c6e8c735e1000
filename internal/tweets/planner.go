// Package tweets plans the post sequence: it serves queued posts when any
// exist and otherwise generates a forward-dated batch, validates it, keeps
// the head for this cycle and queues the tail for the following ones.
package tweets

import (
	"context"
	"errors"
	"fmt"

	"github.com/chenzhisen/XaviersSimACTII-sub000/internal/audit"
	"github.com/chenzhisen/XaviersSimACTII-sub000/internal/life"
	"github.com/chenzhisen/XaviersSimACTII-sub000/internal/llm"
	"github.com/chenzhisen/XaviersSimACTII-sub000/internal/logging"
	"github.com/chenzhisen/XaviersSimACTII-sub000/internal/store"
	"github.com/chenzhisen/XaviersSimACTII-sub000/internal/timeline"
)

const maxBatchAttempts = 3

// QueueStore is the persistence surface the planner needs. PopQueue must
// durably record the popped head as the pending publish intent before
// rewriting the tail; the planner upholds the same ordering itself on the
// generation path via SetPendingIntent.
type QueueStore interface {
	PopQueue(ctx context.Context) (*store.TweetRecord, error)
	ReplaceQueue(ctx context.Context, records []store.TweetRecord) error
	SetPendingIntent(ctx context.Context, record store.TweetRecord) error
}

// PlanContext carries the state a batch is generated from.
type PlanContext struct {
	NextCount int
	Timeline  []store.TweetRecord
	Digest    *store.Digest
	Phase     life.Phase
	Tech      *store.TechEvolution
}

// Planner produces the next post to publish.
type Planner struct {
	store    QueueStore
	provider llm.Provider
	logger   logging.Logger
	audit    *audit.Recorder
	clock    timeline.Clock
	interval int
}

func NewPlanner(st QueueStore, provider llm.Provider, logger logging.Logger, recorder *audit.Recorder, clock timeline.Clock, interval int) *Planner {
	if interval <= 0 {
		interval = timeline.DefaultPostsPerYear / 6
	}
	return &Planner{
		store:    st,
		provider: provider,
		logger:   logger,
		audit:    recorder,
		clock:    clock,
		interval: interval,
	}
}

// Next returns the post to publish this cycle. Queued posts are served
// first; an empty queue triggers batch generation. Batch validation is
// retried as a whole; after exhaustion the head of the last parsed batch is
// returned even when it duplicates recent history, because the narrative
// must keep advancing.
func (p *Planner) Next(ctx context.Context, plan PlanContext) (*store.TweetRecord, error) {
	for {
		queued, err := p.store.PopQueue(ctx)
		if err != nil {
			return nil, err
		}
		if queued == nil {
			break
		}
		// A queued count below the next one was already published by an
		// earlier, partially completed invocation.
		if queued.TweetCount < plan.NextCount {
			p.logger.WithField("tweet_count", queued.TweetCount).Warn("Discarding already-published queued post")
			continue
		}
		queued.Content = Cleanup(queued.Content)
		p.logger.WithField("tweet_count", queued.TweetCount).Debug("Serving post from queue")
		return queued, nil
	}

	length := p.interval
	if p.clock.IsTerminal(plan.NextCount) {
		length = 1
	}

	recent := recentContents(plan.Timeline, p.interval)
	system, user := p.buildPrompt(plan, length)

	// Only a batch whose sole defect is duplicated content is eligible for
	// the availability fallback; malformed or empty batches are not.
	var lastDuplicateBatch []store.TweetRecord
	var lastErr error
	for attempt := 1; attempt <= maxBatchAttempts; attempt++ {
		response, err := p.provider.Complete(ctx, llm.Request{
			System:      system,
			User:        user,
			MaxTokens:   500 * length,
			Temperature: 0.9,
		})
		if p.audit != nil {
			p.audit.Record("tweets", system, user, response)
		}
		if err != nil {
			lastErr = err
			p.logger.WithField("attempt", attempt).WithError(err).Warn("Batch generation attempt failed")
			continue
		}

		candidates, err := ParseBatch(response)
		if err != nil {
			lastErr = err
			p.logger.WithField("attempt", attempt).WithError(err).Warn("Batch parse failed")
			continue
		}

		batch := p.buildRecords(candidates, plan.NextCount)
		if err := validateBatch(batch, length, recent); err != nil {
			var dup *duplicateError
			if errors.As(err, &dup) {
				lastDuplicateBatch = batch
			}
			lastErr = err
			p.logger.WithField("attempt", attempt).WithError(err).Warn("Batch validation failed")
			continue
		}
		return p.accept(ctx, batch)
	}

	if len(lastDuplicateBatch) == 0 {
		return nil, fmt.Errorf("batch generation failed after %d attempts: %w", maxBatchAttempts, lastErr)
	}
	p.logger.WithFields(logging.Fields{
		"tweet_count": lastDuplicateBatch[0].TweetCount,
	}).WithError(lastErr).Warn("Accepting duplicate post after exhausting retries")
	return p.accept(ctx, lastDuplicateBatch)
}

// accept records the batch head as the pending publish intent, then
// atomically replaces the queue with the tail. Intent first: a crash after
// the queue write must not lose the head.
func (p *Planner) accept(ctx context.Context, batch []store.TweetRecord) (*store.TweetRecord, error) {
	head := batch[0]
	if err := p.store.SetPendingIntent(ctx, head); err != nil {
		return nil, err
	}
	if err := p.store.ReplaceQueue(ctx, batch[1:]); err != nil {
		return nil, err
	}
	p.logger.WithFields(logging.Fields{
		"tweet_count": head.TweetCount,
		"queued":      len(batch) - 1,
	}).Info("Accepted generated batch")
	return &head, nil
}

// buildRecords stamps each candidate with its position's count, date and
// age. Position is authoritative; the generated day markers are narrative
// hints only.
func (p *Planner) buildRecords(candidates []Candidate, nextCount int) []store.TweetRecord {
	records := make([]store.TweetRecord, 0, len(candidates))
	for i, candidate := range candidates {
		count := nextCount + i
		records = append(records, store.TweetRecord{
			Content:       Cleanup(candidate.Content),
			TweetCount:    count,
			SimulatedDate: p.clock.Date(count).Format("2006-01-02"),
			Age:           p.clock.Age(count),
		})
	}
	return records
}

// duplicateError marks a batch rejected solely for repeating recent
// history, the one failure class the exhaustion fallback may accept.
type duplicateError struct {
	count int
}

func (e *duplicateError) Error() string {
	return fmt.Sprintf("post %d duplicates recent history", e.count)
}

func validateBatch(batch []store.TweetRecord, length int, recent map[string]struct{}) error {
	if len(batch) != length {
		return fmt.Errorf("batch has %d posts, want %d", len(batch), length)
	}
	for _, record := range batch {
		if record.Content == "" {
			return fmt.Errorf("post %d is empty", record.TweetCount)
		}
	}
	for _, record := range batch {
		if _, dup := recent[record.Content]; dup {
			return &duplicateError{count: record.TweetCount}
		}
	}
	return nil
}

// recentContents collects the published contents inside the duplication
// window.
func recentContents(published []store.TweetRecord, window int) map[string]struct{} {
	start := len(published) - window
	if start < 0 {
		start = 0
	}
	recent := make(map[string]struct{}, len(published)-start)
	for _, record := range published[start:] {
		recent[record.Content] = struct{}{}
	}
	return recent
}
