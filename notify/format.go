package notify

import (
	"strings"

	"blogwatch/models"
)

// FormatConfig holds the rendering rules for notifications
type FormatConfig struct {
	// StripPhrases are removed from post titles
	StripPhrases []string
	// LinkBase is prepended to the slug when a post has no absolute link
	LinkBase string
	// FallbackLink is used when a post has neither link nor slug
	FallbackLink string
	// Color is the embed accent color
	Color int
}

const (
	descriptionMarker = `meta name="description"`
	contentAttr       = `content="`

	// Descriptions longer than this are cut to 997 characters plus an ellipsis
	maxDescriptionLen = 1000

	noTitle       = "No Title"
	unknownAuthor = "Unknown"
)

// BuildNotification renders a raw post into a notification payload. It is a
// pure function; a malformed meta-tag blob degrades to an empty description
// rather than failing.
func BuildNotification(raw models.RawPost, cfg FormatConfig) models.Notification {
	title := raw.Title
	if title == "" {
		title = raw.GridTitle
	}
	if title == "" {
		title = noTitle
	}
	for _, phrase := range cfg.StripPhrases {
		title = strings.ReplaceAll(title, phrase, "")
	}
	title = strings.TrimSpace(title)

	description := ExtractDescription(raw.MetaTags)
	if description == "" {
		description = truncate(raw.Content)
	}
	if strings.Contains(description, "<p style=") {
		// Raw inline-styled markup does not render, drop it
		description = ""
	}

	link := cfg.FallbackLink
	if strings.HasPrefix(raw.Link, "http") {
		link = raw.Link
	} else if raw.Slug != "" {
		link = cfg.LinkBase + raw.Slug
	}

	author := raw.Author
	if author == "" {
		author = unknownAuthor
	}

	// Only square avatar-style renditions are usable as a thumbnail
	thumbnail := ""
	if strings.Contains(raw.Image, "576x576") {
		thumbnail = raw.Image
	}

	return models.Notification{
		Title:       title,
		Author:      author,
		Description: description,
		Link:        link,
		Thumbnail:   thumbnail,
		Image:       raw.TrendingImage,
		Color:       cfg.Color,
	}
}

// ExtractDescription scans a meta-tag blob for the description meta tag and
// returns its content attribute. It is a heuristic substring scan, not a
// markup parser; any malformed bounds yield the empty string.
func ExtractDescription(metaTags string) string {
	markerIdx := strings.Index(metaTags, descriptionMarker)
	if markerIdx < 0 {
		return ""
	}

	start := strings.Index(metaTags[markerIdx:], contentAttr)
	if start < 0 {
		return ""
	}
	start += markerIdx + len(contentAttr)

	end := strings.Index(metaTags[start:], `"`)
	if end < 0 {
		return ""
	}

	return metaTags[start : start+end]
}

func truncate(content string) string {
	runes := []rune(content)
	if len(runes) <= maxDescriptionLen {
		return content
	}
	return string(runes[:maxDescriptionLen-3]) + "..."
}
