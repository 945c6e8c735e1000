// Package digest produces the periodic narrative summaries that keep
// long-running generation coherent. A digest condenses recent posts into
// per-track history and near-term projections; the planner feeds the
// latest digest back into every post prompt.
package digest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/chenzhisen/XaviersSimACTII-sub000/internal/audit"
	"github.com/chenzhisen/XaviersSimACTII-sub000/internal/life"
	"github.com/chenzhisen/XaviersSimACTII-sub000/internal/llm"
	"github.com/chenzhisen/XaviersSimACTII-sub000/internal/logging"
	"github.com/chenzhisen/XaviersSimACTII-sub000/internal/store"
	"github.com/chenzhisen/XaviersSimACTII-sub000/internal/tech"
)

const (
	// DefaultInterval regenerates the digest every this many posts.
	DefaultInterval = 16

	maxAttempts  = 3
	attemptDelay = 2 * time.Second
)

// HistoryStore is the persistence surface the scheduler needs.
type HistoryStore interface {
	DigestHistory(ctx context.Context) ([]store.Digest, string, error)
	AppendDigest(ctx context.Context, digest store.Digest) error
}

// Context carries the simulated-timeline state a digest is generated from.
type Context struct {
	PostCount     int
	Age           float64
	SimulatedDate time.Time
	RecentPosts   []store.TweetRecord
	Phase         life.Phase
	Tech          *store.TechEvolution
}

// Scheduler decides when a fresh digest is due and generates it.
type Scheduler struct {
	store    HistoryStore
	provider llm.Provider
	logger   logging.Logger
	audit    *audit.Recorder
	interval int
	techBase int

	// sleep is replaceable in tests so retry backoff does not wall-clock.
	sleep func(ctx context.Context, d time.Duration) error
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithSleep replaces the backoff sleep, used by tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(s *Scheduler) { s.sleep = sleep }
}

// WithTechBaseYear aligns epoch selection with a tech scheduler whose base
// year was overridden.
func WithTechBaseYear(year int) Option {
	return func(s *Scheduler) { s.techBase = year }
}

func NewScheduler(st HistoryStore, provider llm.Provider, logger logging.Logger, recorder *audit.Recorder, interval int, opts ...Option) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	s := &Scheduler{
		store:    st,
		provider: provider,
		logger:   logger,
		audit:    recorder,
		interval: interval,
		techBase: tech.DefaultBaseYear,
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ShouldGenerate reports whether a fresh digest is due at the given post
// count. The first digest is always due.
func (s *Scheduler) ShouldGenerate(last *store.Digest, postCount int) bool {
	if last == nil {
		return true
	}
	return postCount-last.Metadata.PostCount >= s.interval
}

// Ensure returns the digest that should contextualize the next post,
// generating and persisting a fresh one when the interval has elapsed. A
// nil digest with an error means generation is required but exhausted its
// attempts; callers must not publish without a current digest.
func (s *Scheduler) Ensure(ctx context.Context, gen Context) (*store.Digest, error) {
	history, _, err := s.store.DigestHistory(ctx)
	if err != nil {
		return nil, err
	}
	var last *store.Digest
	if len(history) > 0 {
		last = &history[len(history)-1]
	}
	if !s.ShouldGenerate(last, gen.PostCount) {
		return last, nil
	}

	digest, err := s.generate(ctx, gen, last)
	if err != nil {
		return nil, err
	}
	if err := s.store.AppendDigest(ctx, *digest); err != nil {
		return nil, err
	}
	s.logger.WithFields(logging.Fields{
		"post_count": gen.PostCount,
		"age":        fmt.Sprintf("%.2f", gen.Age),
	}).Info("Generated digest")
	return digest, nil
}

func (s *Scheduler) generate(ctx context.Context, gen Context, last *store.Digest) (*store.Digest, error) {
	system, user := s.buildPrompt(gen, last)

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		response, err := s.provider.Complete(ctx, llm.Request{
			System:      system,
			User:        user,
			MaxTokens:   2000,
			Temperature: 0.7,
		})
		if s.audit != nil {
			s.audit.Record("digest", system, user, response)
		}
		if err == nil {
			digest, parseErr := s.parse(response, gen)
			if parseErr == nil {
				return digest, nil
			}
			err = parseErr
		}
		lastErr = err
		s.logger.WithFields(logging.Fields{
			"attempt": attempt,
		}).WithError(err).Warn("Digest generation attempt failed")
		if attempt < maxAttempts {
			if sleepErr := s.sleep(ctx, attemptDelay); sleepErr != nil {
				return nil, sleepErr
			}
		}
	}
	return nil, fmt.Errorf("digest generation failed after %d attempts: %w", maxAttempts, lastErr)
}

// parse decodes a digest response, fills placeholder tracks, and stamps
// metadata. A missing or unparseable age falls back to the simulated age.
func (s *Scheduler) parse(response string, gen Context) (*store.Digest, error) {
	var digest store.Digest
	if err := json.Unmarshal([]byte(llm.StripFences(response)), &digest); err != nil {
		return nil, fmt.Errorf("decode digest response: %w", err)
	}

	filled := 0
	for _, track := range []*store.DigestTrack{
		&digest.Professional, &digest.Personal, &digest.Family,
		&digest.Social, &digest.Reflections, &digest.Foundation,
	} {
		if len(track.HistoricalSummary) > 0 || len(track.Projected) > 0 {
			filled++
			continue
		}
		track.HistoricalSummary = []string{"No established developments yet."}
		track.Projected = []string{"Continue the current trajectory."}
	}
	if filled == 0 {
		return nil, fmt.Errorf("digest response carries no narrative tracks")
	}

	if digest.Age == 0 {
		digest.Age = store.FlexFloat(gen.Age)
	}
	digest.Metadata = store.DigestMetadata{
		PostCount:     gen.PostCount,
		SimulatedDate: gen.SimulatedDate.Format("2006-01-02"),
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
	}
	return &digest, nil
}

func (s *Scheduler) buildPrompt(gen Context, last *store.Digest) (system, user string) {
	var b strings.Builder

	fmt.Fprintf(&b, "Simulated date: %s. Persona age: %.2f. Posts published: %d.\n\n",
		gen.SimulatedDate.Format("2006-01-02"), gen.Age, gen.PostCount)

	b.WriteString("Current life phase:\n")
	b.WriteString(gen.Phase.Describe())
	b.WriteString("\n")

	if techContext := s.techContext(gen); techContext != "" {
		b.WriteString(techContext)
		b.WriteString("\n")
	}

	if last != nil {
		b.WriteString("Previous projections to reconcile against what actually happened:\n")
		for _, track := range []struct {
			name  string
			track store.DigestTrack
		}{
			{"professional", last.Professional}, {"personal", last.Personal},
			{"family", last.Family}, {"social", last.Social},
			{"reflections", last.Reflections}, {"foundation", last.Foundation},
		} {
			for _, line := range track.track.Projected {
				fmt.Fprintf(&b, "- [%s] %s\n", track.name, line)
			}
		}
		b.WriteString("\n")
	}

	if len(gen.RecentPosts) > 0 {
		b.WriteString("Posts since the last digest, oldest first:\n")
		for _, post := range gen.RecentPosts {
			fmt.Fprintf(&b, "- (%s) %s\n", post.SimulatedDate, post.Content)
		}
		b.WriteString("\n")
	}

	b.WriteString(`Condense the story so far and project what comes next. Respond with a single JSON object and nothing else:
{
  "age": 0.0,
  "professional": {"historical_summary": [""], "projected": [""]},
  "personal": {"historical_summary": [""], "projected": [""]},
  "family": {"historical_summary": [""], "projected": [""]},
  "social": {"historical_summary": [""], "projected": [""]},
  "reflections": {"historical_summary": [""], "projected": [""]},
  "foundation": {"historical_summary": [""], "projected": [""]}
}
Each historical_summary is a short list of what has happened; each projected is a short list of plausible near-term developments.`)

	system = "You are the narrative memory of a long-running simulated persona. " +
		"You summarize lived history faithfully and project forward in small, plausible steps. " +
		"Respond only with JSON."
	return system, b.String()
}

// techContext selects the epoch the simulated date lives in, rolling to
// the next epoch when within six months of its boundary, and lists what is
// mature versus maturing soon.
func (s *Scheduler) techContext(gen Context) string {
	if gen.Tech == nil || len(gen.Tech.TechTrees) == 0 {
		return ""
	}
	simYear := gen.SimulatedDate.Year()
	epochYear := s.techBase
	if simYear > s.techBase {
		epochYear = simYear - (simYear-s.techBase)%tech.EpochSpan
	}
	nextBoundary := time.Date(epochYear+tech.EpochSpan, time.January, 1, 0, 0, 0, 0, time.UTC)
	if nextBoundary.Sub(gen.SimulatedDate) <= 183*24*time.Hour {
		if _, ok := gen.Tech.Epoch(epochYear + tech.EpochSpan); ok {
			epochYear += tech.EpochSpan
		}
	}
	epoch, ok := gen.Tech.Epoch(epochYear)
	if !ok {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Technology environment (epoch %d):\n", epochYear)
	for _, tech := range epoch.MainstreamTechnologies {
		if int(tech.MaturityYear) <= simYear {
			fmt.Fprintf(&b, "- mature: %s\n", tech.Name)
		}
	}
	for _, tech := range epoch.EmergingTechnologies {
		if int(tech.EstimatedYear) <= simYear+1 {
			fmt.Fprintf(&b, "- maturing soon: %s\n", tech.Name)
		}
	}
	return b.String()
}
