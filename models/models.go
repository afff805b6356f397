package models

import "time"

// RawPost is one entry of the blogList array returned by the blog APIs.
// Only the fields the pipeline reads are declared; everything else in the
// response is ignored on decode.
type RawPost struct {
	ID            string `json:"_id"`
	Slug          string `json:"slug"`
	Link          string `json:"link"`
	Title         string `json:"title"`
	GridTitle     string `json:"gridTitle"`
	Author        string `json:"author"`
	Content       string `json:"content"`
	MetaTags      string `json:"_metaTags"`
	Image         string `json:"image"`
	TrendingImage string `json:"trendingImage"`
	Trending      bool   `json:"trending"`
	Date          string `json:"date"`
}

// Fingerprint is the comparable snapshot of the fields of a post that count
// as a meaningful change. Compared by value; add fields here when their
// change should re-trigger a notification.
type Fingerprint struct {
	Trending bool
}

// Post is a raw post reduced to what change detection needs.
type Post struct {
	ID          string
	Fingerprint Fingerprint
	Category    string
	Raw         RawPost
}

// Notification is the rendered message for one new or changed post.
// Built fresh every cycle, never persisted.
type Notification struct {
	Title       string
	Author      string
	Description string
	Link        string
	Thumbnail   string
	Image       string
	Color       int
}

// PendingDelivery is one queued send, consumed in FIFO order.
type PendingDelivery struct {
	Notification Notification
	Delay        time.Duration
}

// TrackedPost is a dedup store entry as exposed by the ops endpoint.
type TrackedPost struct {
	ID          string    `json:"id"`
	Trending    bool      `json:"trending"`
	FirstSeenAt time.Time `json:"firstSeenAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
