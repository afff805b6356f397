package monitor_test

import (
	"context"
	"errors"
	"testing"

	"blogwatch/models"
	"blogwatch/monitor"
	"blogwatch/notify"

	"github.com/stretchr/testify/assert"
)

type fakeFetcher struct {
	results map[string][]models.RawPost
	errs    map[string]error
}

func (f *fakeFetcher) FetchPosts(ctx context.Context, feed string, url string) ([]models.RawPost, error) {
	if err := f.errs[feed]; err != nil {
		return nil, err
	}
	return f.results[feed], nil
}

type recordingStore struct {
	calls   *[]string
	flushes []monitor.State
	err     error
}

func (s *recordingStore) Flush(ctx context.Context, state monitor.State) error {
	*s.calls = append(*s.calls, "flush")
	snapshot := monitor.State{}
	for k, v := range state {
		snapshot[k] = v
	}
	s.flushes = append(s.flushes, snapshot)
	return s.err
}

type recordingSink struct {
	calls *[]string
	sent  []models.Notification
}

func (s *recordingSink) Send(ctx context.Context, notification models.Notification) error {
	*s.calls = append(*s.calls, "send")
	s.sent = append(s.sent, notification)
	return nil
}

func newTestPoller(fetcher *fakeFetcher, store *recordingStore, sink *recordingSink, state monitor.State) *monitor.Poller {
	return monitor.NewPoller(monitor.PollerConfig{
		Feeds: []monitor.Feed{
			{Name: "competitive", URL: "https://example.com/competitive", Category: "Competitive"},
			{Name: "normal", URL: "https://example.com/normal", Category: "Normal"},
		},
		Fetcher:   fetcher,
		Store:     store,
		Scheduler: notify.NewScheduler(),
		Sink:      sink,
		Format: notify.FormatConfig{
			FallbackLink: "https://www.fortnite.com/",
		},
	}, state)
}

func TestCycleEndToEnd(t *testing.T) {
	var calls []string
	fetcher := &fakeFetcher{results: map[string][]models.RawPost{
		"competitive": {{ID: "p1", Trending: true, Title: "X"}},
		"normal":      {},
	}}
	store := &recordingStore{calls: &calls}
	sink := &recordingSink{calls: &calls}

	poller := newTestPoller(fetcher, store, sink, monitor.State{})
	poller.Cycle(context.Background())

	assert.Len(t, sink.sent, 1)
	assert.Equal(t, "X", sink.sent[0].Title)

	assert.Len(t, store.flushes, 1)
	assert.Equal(t, monitor.State{"p1": {Trending: true}}, store.flushes[0])
	assert.Equal(t, monitor.State{"p1": {Trending: true}}, poller.State())

	// State is durable before the first send is attempted
	assert.Equal(t, []string{"flush", "send"}, calls)
}

func TestCycleIsIdempotent(t *testing.T) {
	var calls []string
	fetcher := &fakeFetcher{results: map[string][]models.RawPost{
		"competitive": {{ID: "p1", Trending: true, Title: "X"}},
	}}
	store := &recordingStore{calls: &calls}
	sink := &recordingSink{calls: &calls}

	poller := newTestPoller(fetcher, store, sink, monitor.State{})
	poller.Cycle(context.Background())
	poller.Cycle(context.Background())

	// Second cycle sees no change: no flush, no send
	assert.Len(t, sink.sent, 1)
	assert.Len(t, store.flushes, 1)
}

func TestCycleOrdersCompetitiveFirst(t *testing.T) {
	var calls []string
	fetcher := &fakeFetcher{results: map[string][]models.RawPost{
		"competitive": {{ID: "a", Title: "A"}, {ID: "b", Title: "B"}},
		"normal":      {{ID: "c", Title: "C"}, {ID: "d", Title: "D"}},
	}}
	store := &recordingStore{calls: &calls}
	sink := &recordingSink{calls: &calls}

	poller := newTestPoller(fetcher, store, sink, monitor.State{})
	poller.Cycle(context.Background())

	var titles []string
	for _, n := range sink.sent {
		titles = append(titles, n.Title)
	}
	assert.Equal(t, []string{"A", "B", "C", "D"}, titles)
}

func TestCycleSurvivesFeedFailure(t *testing.T) {
	var calls []string
	fetcher := &fakeFetcher{
		results: map[string][]models.RawPost{
			"normal": {{ID: "p2", Title: "Still here"}},
		},
		errs: map[string]error{
			"competitive": errors.New("blocked by bot detection"),
		},
	}
	store := &recordingStore{calls: &calls}
	sink := &recordingSink{calls: &calls}

	poller := newTestPoller(fetcher, store, sink, monitor.State{})
	poller.Cycle(context.Background())

	// The failed feed degrades to empty, the other feed is still announced
	assert.Len(t, sink.sent, 1)
	assert.Equal(t, "Still here", sink.sent[0].Title)
}

func TestCycleKeepsStateOnPersistFailure(t *testing.T) {
	var calls []string
	fetcher := &fakeFetcher{results: map[string][]models.RawPost{
		"competitive": {{ID: "p1", Title: "X"}},
	}}
	store := &recordingStore{calls: &calls, err: errors.New("disk full")}
	sink := &recordingSink{calls: &calls}

	poller := newTestPoller(fetcher, store, sink, monitor.State{})
	poller.Cycle(context.Background())

	// Delivery still happens and the in-memory state stays authoritative
	assert.Len(t, sink.sent, 1)
	assert.Equal(t, monitor.State{"p1": {Trending: false}}, poller.State())

	// The next cycle does not re-announce
	poller.Cycle(context.Background())
	assert.Len(t, sink.sent, 1)
}
