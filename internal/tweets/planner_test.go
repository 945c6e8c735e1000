package tweets

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/chenzhisen/XaviersSimACTII-sub000/internal/llm"
	"github.com/chenzhisen/XaviersSimACTII-sub000/internal/store"
	"github.com/chenzhisen/XaviersSimACTII-sub000/internal/timeline"
)

type fakeQueue struct {
	records  []store.TweetRecord
	intent   *store.TweetRecord
	ops      []string
	replaces int
}

func (f *fakeQueue) PopQueue(ctx context.Context) (*store.TweetRecord, error) {
	if len(f.records) == 0 {
		return nil, nil
	}
	head := f.records[0]
	f.intent = &head
	f.ops = append(f.ops, "intent", "pop")
	f.records = f.records[1:]
	return &head, nil
}

func (f *fakeQueue) ReplaceQueue(ctx context.Context, records []store.TweetRecord) error {
	f.replaces++
	f.ops = append(f.ops, "replace")
	f.records = append([]store.TweetRecord{}, records...)
	return nil
}

func (f *fakeQueue) SetPendingIntent(ctx context.Context, record store.TweetRecord) error {
	f.intent = &record
	f.ops = append(f.ops, "intent")
	return nil
}

type fakeProvider struct {
	responses []string
	errs      []error
	calls     int
}

func (f *fakeProvider) Complete(ctx context.Context, req llm.Request) (string, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	return "", fmt.Errorf("unexpected call %d", i)
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// batchResponse renders n day-marked sections with distinct contents.
func batchResponse(clock timeline.Clock, nextCount, n int, tag string) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "[Day %d]\npost %s-%d\n\n", clock.Day(nextCount+i), tag, nextCount+i)
	}
	return b.String()
}

func TestNextServesFromQueueWithoutGeneration(t *testing.T) {
	clock := timeline.NewClock(96)
	queue := &fakeQueue{records: []store.TweetRecord{
		{Content: "Update: queued post", TweetCount: 7, SimulatedDate: "2025-01-29", Age: 22.07},
		{Content: "later post", TweetCount: 8},
	}}
	provider := &fakeProvider{}
	planner := NewPlanner(queue, provider, testLogger(), nil, clock, 5)

	next, err := planner.Next(context.Background(), PlanContext{NextCount: 7})
	require.NoError(t, err)
	require.Equal(t, 7, next.TweetCount)
	require.Equal(t, "queued post", next.Content)
	require.Zero(t, provider.calls)
	require.Len(t, queue.records, 1)
}

func TestNextGeneratesWhenQueueEmptyAndQueuesTail(t *testing.T) {
	clock := timeline.NewClock(96)
	queue := &fakeQueue{}
	provider := &fakeProvider{responses: []string{batchResponse(clock, 0, 5, "a")}}
	planner := NewPlanner(queue, provider, testLogger(), nil, clock, 5)

	next, err := planner.Next(context.Background(), PlanContext{NextCount: 0})
	require.NoError(t, err)
	require.Equal(t, 0, next.TweetCount)
	require.Equal(t, 1, provider.calls)

	// Head is returned, the remaining 4 are queued with their own
	// position-derived counts, dates and ages.
	require.Len(t, queue.records, 4)
	for i, record := range queue.records {
		require.Equal(t, i+1, record.TweetCount)
		require.Equal(t, clock.Date(i+1).Format("2006-01-02"), record.SimulatedDate)
		require.InDelta(t, clock.Age(i+1), record.Age, 1e-9)
	}
}

func TestQueueDrainsBeforeNextGeneration(t *testing.T) {
	clock := timeline.NewClock(96)
	queue := &fakeQueue{}
	provider := &fakeProvider{responses: []string{
		batchResponse(clock, 0, 5, "a"),
		batchResponse(clock, 5, 5, "b"),
	}}
	planner := NewPlanner(queue, provider, testLogger(), nil, clock, 5)

	for count := 0; count < 5; count++ {
		next, err := planner.Next(context.Background(), PlanContext{NextCount: count})
		require.NoError(t, err)
		require.Equal(t, count, next.TweetCount)
	}
	require.Equal(t, 1, provider.calls, "first five posts need exactly one generation")

	next, err := planner.Next(context.Background(), PlanContext{NextCount: 5})
	require.NoError(t, err)
	require.Equal(t, 5, next.TweetCount)
	require.Equal(t, 2, provider.calls, "sixth post triggers a fresh batch")
}

func TestLengthMismatchTriggersFullRegeneration(t *testing.T) {
	clock := timeline.NewClock(96)
	queue := &fakeQueue{}
	provider := &fakeProvider{responses: []string{
		batchResponse(clock, 0, 3, "short"),
		batchResponse(clock, 0, 5, "full"),
	}}
	planner := NewPlanner(queue, provider, testLogger(), nil, clock, 5)

	next, err := planner.Next(context.Background(), PlanContext{NextCount: 0})
	require.NoError(t, err)
	require.Equal(t, 2, provider.calls)
	require.Equal(t, "post full-0", next.Content)
}

func TestDuplicateContentRejectedWhileRetriesRemain(t *testing.T) {
	clock := timeline.NewClock(96)
	queue := &fakeQueue{}

	duplicated := batchResponse(clock, 10, 5, "dup")
	published := []store.TweetRecord{{Content: "post dup-11", TweetCount: 3}}
	provider := &fakeProvider{responses: []string{
		duplicated,
		batchResponse(clock, 10, 5, "fresh"),
	}}
	planner := NewPlanner(queue, provider, testLogger(), nil, clock, 5)

	next, err := planner.Next(context.Background(), PlanContext{NextCount: 10, Timeline: published})
	require.NoError(t, err)
	require.Equal(t, 2, provider.calls)
	require.Equal(t, "post fresh-10", next.Content)
}

func TestExhaustedRetriesStillReturnAPost(t *testing.T) {
	clock := timeline.NewClock(96)
	queue := &fakeQueue{}

	duplicated := batchResponse(clock, 10, 5, "dup")
	published := []store.TweetRecord{{Content: "post dup-10", TweetCount: 2}}
	provider := &fakeProvider{responses: []string{duplicated, duplicated, duplicated}}
	planner := NewPlanner(queue, provider, testLogger(), nil, clock, 5)

	next, err := planner.Next(context.Background(), PlanContext{NextCount: 10, Timeline: published})
	require.NoError(t, err)
	require.Equal(t, 3, provider.calls)
	require.Equal(t, "post dup-10", next.Content, "known duplicate is accepted over stalling")
	require.Len(t, queue.records, 4, "tail of the accepted batch is still queued")
}

func TestAllAttemptsUnparseableIsAnError(t *testing.T) {
	clock := timeline.NewClock(96)
	queue := &fakeQueue{}
	provider := &fakeProvider{responses: []string{"prose", "more prose", "still prose"}}
	planner := NewPlanner(queue, provider, testLogger(), nil, clock, 5)

	_, err := planner.Next(context.Background(), PlanContext{NextCount: 0})
	require.Error(t, err)
	require.Equal(t, 3, provider.calls)
}

func TestAcceptRecordsIntentBeforeQueueWrite(t *testing.T) {
	clock := timeline.NewClock(96)
	queue := &fakeQueue{}
	provider := &fakeProvider{responses: []string{batchResponse(clock, 0, 5, "a")}}
	planner := NewPlanner(queue, provider, testLogger(), nil, clock, 5)

	next, err := planner.Next(context.Background(), PlanContext{NextCount: 0})
	require.NoError(t, err)
	require.Equal(t, []string{"intent", "replace"}, queue.ops, "head is durable before the queue is rewritten")
	require.NotNil(t, queue.intent)
	require.Equal(t, next.TweetCount, queue.intent.TweetCount)
	require.Equal(t, next.Content, queue.intent.Content)
}

func TestAlreadyPublishedQueuedPostsAreDiscarded(t *testing.T) {
	clock := timeline.NewClock(96)
	queue := &fakeQueue{records: []store.TweetRecord{
		{Content: "republished earlier", TweetCount: 3},
		{Content: "still pending", TweetCount: 5},
	}}
	provider := &fakeProvider{}
	planner := NewPlanner(queue, provider, testLogger(), nil, clock, 5)

	next, err := planner.Next(context.Background(), PlanContext{NextCount: 5})
	require.NoError(t, err)
	require.Equal(t, 5, next.TweetCount)
	require.Equal(t, "still pending", next.Content)
	require.Zero(t, provider.calls)
}

func TestEmptyContentBatchIsNeverAcceptedAsFallback(t *testing.T) {
	clock := timeline.NewClock(96)
	queue := &fakeQueue{}

	// The head cleans down to nothing; only duplicate-content failures may
	// fall through after exhaustion.
	blankHeaded := fmt.Sprintf("[Day %d]\n**\n\n", clock.Day(0)) + batchResponse(clock, 1, 4, "rest")
	provider := &fakeProvider{responses: []string{blankHeaded, blankHeaded, blankHeaded}}
	planner := NewPlanner(queue, provider, testLogger(), nil, clock, 5)

	_, err := planner.Next(context.Background(), PlanContext{NextCount: 0})
	require.Error(t, err)
	require.Equal(t, 3, provider.calls)
	require.Zero(t, queue.replaces, "no part of a rejected batch is queued")
}

func TestTerminalAgeForcesSinglePostBatch(t *testing.T) {
	clock := timeline.NewClock(96)
	terminal := 50 * 96
	queue := &fakeQueue{}
	provider := &fakeProvider{responses: []string{batchResponse(clock, terminal, 1, "finale")}}
	planner := NewPlanner(queue, provider, testLogger(), nil, clock, 5)

	next, err := planner.Next(context.Background(), PlanContext{NextCount: terminal})
	require.NoError(t, err)
	require.Equal(t, terminal, next.TweetCount)
	require.Empty(t, queue.records, "finale batch has no tail to queue")
}
