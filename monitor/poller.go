package monitor

import (
	"context"
	"time"

	"blogwatch/models"
	"blogwatch/notify"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

var (
	pollCycles = promauto.NewCounter(prometheus.CounterOpts{
		Name: "blogwatch_poll_cycles_total",
		Help: "The total number of completed poll cycles",
	})

	pollCycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "blogwatch_poll_cycle_duration_seconds",
		Help:    "Duration of poll cycles",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // Start at 100ms, double each bucket, 10 buckets
	})

	postsNotified = promauto.NewCounter(prometheus.CounterOpts{
		Name: "blogwatch_posts_notified_total",
		Help: "The total number of new or updated posts announced",
	})

	persistErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "blogwatch_persist_errors_total",
		Help: "The total number of failed dedup state flushes",
	})
)

// Fetcher retrieves the raw posts of one feed endpoint
type Fetcher interface {
	FetchPosts(ctx context.Context, feed string, url string) ([]models.RawPost, error)
}

// StateStore persists the dedup state between process runs
type StateStore interface {
	Flush(ctx context.Context, state State) error
}

// Feed is one watched endpoint. Feeds are polled and their posts detected
// in the order they are configured.
type Feed struct {
	Name     string
	URL      string
	Category string
}

// PollerConfig holds the collaborators and timings of the poll loop
type PollerConfig struct {
	Feeds        []Feed
	Fetcher      Fetcher
	Store        StateStore
	Scheduler    *notify.Scheduler
	Sink         notify.Sink
	Format       notify.FormatConfig
	PollInterval time.Duration
	MessageDelay time.Duration
}

// Poller drives the periodic fetch, detect, persist, deliver cycle. It owns
// the dedup state; nothing else mutates it, and cycles never overlap, so no
// locking is needed.
type Poller struct {
	config PollerConfig
	state  State
}

func NewPoller(config PollerConfig, state State) *Poller {
	if state == nil {
		state = State{}
	}
	return &Poller{
		config: config,
		state:  state,
	}
}

// Run polls immediately and then on every tick until the context is
// cancelled. The single loop goroutine serializes cycles; ticks that land
// while a cycle is still in flight are dropped by the ticker, never queued.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.Cycle(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Info("Stopping poll loop")
			return
		case <-ticker.C:
			p.Cycle(ctx)
		}
	}
}

// Cycle performs one full fetch, detect, persist, deliver pass. Every
// failure is contained and logged; no outcome of one cycle prevents the
// next from running.
func (p *Poller) Cycle(ctx context.Context) {
	log.Debug("Polling feeds for new posts")
	start := time.Now()
	defer func() {
		pollCycles.Inc()
		pollCycleDuration.Observe(time.Since(start).Seconds())
	}()

	posts := p.fetchAll(ctx)

	notifyList, updated := Detect(posts, p.state)
	if len(notifyList) == 0 {
		log.Info("No new posts found")
		return
	}

	log.Infof("Found %d new posts, sending messages to channel", len(notifyList))
	postsNotified.Add(float64(len(notifyList)))

	queue := lo.Map(notifyList, func(post models.Post, _ int) models.PendingDelivery {
		return models.PendingDelivery{
			Notification: notify.BuildNotification(post.Raw, p.config.Format),
			Delay:        p.config.MessageDelay,
		}
	})

	// The updated state becomes authoritative before delivery is attempted:
	// a crash between flush and send loses a notification instead of
	// repeating one on restart.
	p.state = updated
	if err := p.config.Store.Flush(ctx, p.state); err != nil {
		persistErrors.Inc()
		log.Errorf("Error persisting dedup state: %s", err)
	}

	p.config.Scheduler.Deliver(ctx, queue, p.config.Sink)
}

func (p *Poller) fetchAll(ctx context.Context) []models.Post {
	var posts []models.Post
	for _, feed := range p.config.Feeds {
		raw, err := p.config.Fetcher.FetchPosts(ctx, feed.Name, feed.URL)
		if err != nil {
			// A failed feed degrades to an empty result for that feed only
			log.WithFields(log.Fields{
				"feed": feed.Name,
			}).Errorf("Error fetching feed: %s", err)
			continue
		}
		for _, r := range raw {
			if post, ok := Normalize(r, feed.Category); ok {
				posts = append(posts, post)
			}
		}
	}
	return posts
}

// State returns the current in-memory dedup state
func (p *Poller) State() State {
	return p.state
}
