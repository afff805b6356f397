package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"blogwatch/models"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
)

var (
	fetchAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blogwatch_feed_fetch_attempts_total",
		Help: "The total number of fetch attempts per feed",
	}, []string{"feed"})

	fetchErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blogwatch_feed_fetch_errors_total",
		Help: "The total number of failed fetches per feed",
	}, []string{"feed"})

	fetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "blogwatch_feed_fetch_duration_seconds",
		Help:    "Duration of feed fetch requests",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // Start at 50ms, double each bucket, 10 buckets
	})
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// blogResponse is the envelope both blog APIs wrap their posts in
type blogResponse struct {
	BlogList []models.RawPost `json:"blogList"`
}

// Client fetches blog posts from the feed endpoints. The blog APIs sit
// behind bot detection, so requests carry browser-like headers and retry
// transient failures.
type Client struct {
	http      *retryablehttp.Client
	userAgent string
}

func NewClient(userAgent string) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 5 * time.Second
	rc.HTTPClient.Timeout = 30 * time.Second
	rc.Logger = nil // retries are logged by the caller

	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	return &Client{
		http:      rc,
		userAgent: userAgent,
	}
}

// FetchPosts retrieves the blogList from the given feed endpoint. The feed
// label is only used for metrics and logging.
func (c *Client) FetchPosts(ctx context.Context, feed string, url string) ([]models.RawPost, error) {
	log.WithFields(log.Fields{
		"feed": feed,
		"url":  url,
	}).Debug("Fetching posts")

	fetchAttempts.WithLabelValues(feed).Inc()
	start := time.Now()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		fetchErrors.WithLabelValues(feed).Inc()
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := c.http.Do(req)
	if err != nil {
		fetchErrors.WithLabelValues(feed).Inc()
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	fetchDuration.Observe(time.Since(start).Seconds())

	if resp.StatusCode != http.StatusOK {
		fetchErrors.WithLabelValues(feed).Inc()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var parsed blogResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		fetchErrors.WithLabelValues(feed).Inc()
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	log.WithFields(log.Fields{
		"feed":  feed,
		"count": len(parsed.BlogList),
	}).Debug("Fetched posts")

	return parsed.BlogList, nil
}
