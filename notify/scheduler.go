package notify

import (
	"context"
	"time"

	"blogwatch/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
)

var (
	deliveriesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "blogwatch_deliveries_sent_total",
		Help: "The total number of notifications delivered to the channel",
	})

	deliveryErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "blogwatch_delivery_errors_total",
		Help: "The total number of failed notification sends",
	})
)

// Sink accepts one formatted notification per call
type Sink interface {
	Send(ctx context.Context, notification models.Notification) error
}

// Clock abstracts the pacing wait so delivery can be tested without
// wall-clock delays
type Clock interface {
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

// Scheduler drains one cycle's worth of pending deliveries in FIFO order,
// one at a time, waiting each item's delay between consecutive sends. It
// keeps no state between cycles.
type Scheduler struct {
	clock Clock
}

func NewScheduler() *Scheduler {
	return &Scheduler{clock: realClock{}}
}

func NewSchedulerWithClock(clock Clock) *Scheduler {
	return &Scheduler{clock: clock}
}

// Deliver sends every queued item in order. A failed send is logged and does
// not abort the remaining queue; the dedup state for that item was already
// committed, so the loss is a best-effort notification loss. Returns the
// number of successful sends.
func (s *Scheduler) Deliver(ctx context.Context, items []models.PendingDelivery, sink Sink) int {
	sent := 0
	for i, item := range items {
		if i > 0 {
			select {
			case <-ctx.Done():
				log.Warn("Delivery interrupted, abandoning remaining queue")
				return sent
			case <-s.clock.After(item.Delay):
			}
		}

		if err := sink.Send(ctx, item.Notification); err != nil {
			deliveryErrors.Inc()
			log.WithFields(log.Fields{
				"title": item.Notification.Title,
			}).Errorf("Error sending notification: %s", err)
			continue
		}

		deliveriesSent.Inc()
		sent++
		log.WithFields(log.Fields{
			"title": item.Notification.Title,
		}).Info("Sent a new blog post update")
	}
	return sent
}
