// Package orchestrator sequences one simulation cycle: resolve any
// interrupted publish, ensure the tech epochs and digest are current,
// obtain the next post, publish it, and record it on the timeline.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/chenzhisen/XaviersSimACTII-sub000/internal/digest"
	"github.com/chenzhisen/XaviersSimACTII-sub000/internal/life"
	"github.com/chenzhisen/XaviersSimACTII-sub000/internal/logging"
	"github.com/chenzhisen/XaviersSimACTII-sub000/internal/provider/twitter"
	"github.com/chenzhisen/XaviersSimACTII-sub000/internal/store"
	"github.com/chenzhisen/XaviersSimACTII-sub000/internal/tech"
	"github.com/chenzhisen/XaviersSimACTII-sub000/internal/timeline"
	"github.com/chenzhisen/XaviersSimACTII-sub000/internal/tweets"
)

// Poster publishes a post externally and returns its opaque id.
type Poster interface {
	PostTweet(ctx context.Context, text string) (string, error)
}

// StateStore is the persistence surface the workflow needs beyond what the
// schedulers and planner already hold.
type StateStore interface {
	Timeline(ctx context.Context) ([]store.TweetRecord, string, error)
	AppendTweet(ctx context.Context, record store.TweetRecord) error
	PendingIntent(ctx context.Context) (*store.TweetRecord, error)
	SetPendingIntent(ctx context.Context, record store.TweetRecord) error
	ClearPendingIntent(ctx context.Context) error
}

// Workflow runs one cycle per invocation. It is safe to re-invoke
// concurrently with a still-running prior invocation; cross-invocation
// races resolve through the store's version tokens.
type Workflow struct {
	store   StateStore
	clock   timeline.Clock
	tech    *tech.Scheduler
	digests *digest.Scheduler
	planner *tweets.Planner
	poster  Poster
	phases  []life.Phase
	logger  logging.Logger
	window  int
}

func NewWorkflow(st StateStore, clock timeline.Clock, techSched *tech.Scheduler, digestSched *digest.Scheduler, planner *tweets.Planner, poster Poster, phases []life.Phase, logger logging.Logger, digestInterval int) *Workflow {
	if digestInterval <= 0 {
		digestInterval = digest.DefaultInterval
	}
	return &Workflow{
		store:   st,
		clock:   clock,
		tech:    techSched,
		digests: digestSched,
		planner: planner,
		poster:  poster,
		phases:  phases,
		logger:  logger,
		window:  digestInterval,
	}
}

// Run executes one cycle. A failed cycle leaves durable state consistent;
// the next scheduled invocation retries from it.
func (w *Workflow) Run(ctx context.Context) error {
	cycleID := uuid.New().String()[:8]
	var logger logging.Entry = w.logger.WithField("cycle", cycleID)

	if err := w.resolvePending(ctx, logger); err != nil {
		return fmt.Errorf("resolve pending intent: %w", err)
	}

	records, _, err := w.store.Timeline(ctx)
	if err != nil {
		return fmt.Errorf("load timeline: %w", err)
	}

	nextCount := 0
	if len(records) > 0 {
		last := records[len(records)-1]
		if w.clock.IsTerminal(last.TweetCount) {
			logger.WithField("tweet_count", last.TweetCount).Info("Narrative is complete, nothing to do")
			return nil
		}
		nextCount = last.TweetCount + 1
	}

	age := w.clock.Age(nextCount)
	simDate := w.clock.Date(nextCount)
	phase := life.PhaseFor(w.phases, age)
	logger = logger.WithFields(logging.Fields{
		"tweet_count":    nextCount,
		"age":            fmt.Sprintf("%.2f", age),
		"simulated_date": simDate.Format("2006-01-02"),
	})
	logger.Info("Starting cycle")

	evolution, err := w.tech.Ensure(ctx, simDate.Year())
	if err != nil {
		return fmt.Errorf("ensure tech epochs: %w", err)
	}

	current, err := w.digests.Ensure(ctx, digest.Context{
		PostCount:     nextCount,
		Age:           age,
		SimulatedDate: simDate,
		RecentPosts:   tail(records, w.window),
		Phase:         phase,
		Tech:          evolution,
	})
	if err != nil {
		return fmt.Errorf("ensure digest: %w", err)
	}

	next, err := w.planner.Next(ctx, tweets.PlanContext{
		NextCount: nextCount,
		Timeline:  records,
		Digest:    current,
		Phase:     phase,
		Tech:      evolution,
	})
	if err != nil {
		return fmt.Errorf("plan next post: %w", err)
	}

	if err := w.publish(ctx, logger, next); err != nil {
		return err
	}
	logger.Info("Cycle complete")
	return nil
}

// resolvePending completes a publish interrupted by a crash. An intent
// whose count is already on the timeline was fully recorded; anything else
// is republished and recorded now.
func (w *Workflow) resolvePending(ctx context.Context, logger logging.Entry) error {
	intent, err := w.store.PendingIntent(ctx)
	if err != nil {
		return err
	}
	if intent == nil {
		return nil
	}

	records, _, err := w.store.Timeline(ctx)
	if err != nil {
		return err
	}
	for _, record := range records {
		if record.TweetCount == intent.TweetCount {
			logger.WithField("tweet_count", intent.TweetCount).
				Info("Pending intent already recorded, clearing")
			return w.store.ClearPendingIntent(ctx)
		}
	}

	logger.WithField("tweet_count", intent.TweetCount).
		Warn("Recovering interrupted publish")
	return w.publish(ctx, logger, intent)
}

// publish records intent, posts externally when a poster is configured,
// then appends to the timeline and clears the intent. A failed external
// post still advances the timeline under a synthetic id so the narrative
// never stalls on the poster.
func (w *Workflow) publish(ctx context.Context, logger logging.Entry, record *store.TweetRecord) error {
	record.Timestamp = time.Now().UTC().Format(time.RFC3339)

	if w.poster != nil {
		if err := w.store.SetPendingIntent(ctx, *record); err != nil {
			return fmt.Errorf("record publish intent: %w", err)
		}
		id, err := w.poster.PostTweet(ctx, truncateForPost(record.Content))
		if err != nil {
			logger.WithField("tweet_count", record.TweetCount).WithError(err).
				Warn("External publish failed, recording with synthetic id")
			id = fmt.Sprintf("tweet_%d", record.TweetCount)
		}
		record.ID = id
	} else {
		record.ID = fmt.Sprintf("tweet_%d", record.TweetCount)
	}

	if err := w.store.AppendTweet(ctx, *record); err != nil {
		return fmt.Errorf("append tweet: %w", err)
	}
	if err := w.store.ClearPendingIntent(ctx); err != nil {
		return fmt.Errorf("clear publish intent: %w", err)
	}
	logger.WithFields(logging.Fields{
		"tweet_count": record.TweetCount,
		"id":          record.ID,
	}).Info("Published post")
	return nil
}

// truncateForPost trims content to the poster's character limit, ending on
// an ellipsis when cut.
func truncateForPost(content string) string {
	runes := []rune(content)
	if len(runes) <= twitter.MaxTweetLength {
		return content
	}
	return string(runes[:twitter.MaxTweetLength-3]) + "..."
}

func tail(records []store.TweetRecord, n int) []store.TweetRecord {
	if len(records) <= n {
		return records
	}
	return records[len(records)-n:]
}
