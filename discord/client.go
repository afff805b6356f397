package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"blogwatch/models"

	"github.com/labstack/gommon/log"
)

const DefaultAPIHost = "https://discord.com/api/v10"

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type embedMedia struct {
	URL string `json:"url"`
}

type embed struct {
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color"`
	Fields      []embedField `json:"fields"`
	Thumbnail   *embedMedia  `json:"thumbnail,omitempty"`
	Image       *embedMedia  `json:"image,omitempty"`
}

type createMessage struct {
	Embeds []embed `json:"embeds"`
}

// Client posts notifications to a Discord channel over the REST API
type Client struct {
	host      string
	token     string
	channelID string
	http      *http.Client
}

func NewClient(token string, channelID string) *Client {
	return &Client{
		host:      DefaultAPIHost,
		token:     token,
		channelID: channelID,
		http:      &http.Client{Timeout: 15 * time.Second},
	}
}

// NewClientWithHost is used by tests to point the client at a fake API
func NewClientWithHost(host string, token string, channelID string) *Client {
	c := NewClient(token, channelID)
	c.host = host
	return c
}

// Send posts one notification as a single embed message
func (c *Client) Send(ctx context.Context, notification models.Notification) error {
	message := createMessage{Embeds: []embed{buildEmbed(notification)}}

	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	url := fmt.Sprintf("%s/channels/%s/messages", c.host, c.channelID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bot "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Display the entire response body so we can see what went wrong
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		log.Errorf("failed to send message: status %d: %s", resp.StatusCode, string(respBody))
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return nil
}

func buildEmbed(notification models.Notification) embed {
	e := embed{
		Title:       notification.Title,
		Description: notification.Description,
		Color:       notification.Color,
		Fields: []embedField{
			{Name: "Author", Value: notification.Author},
			{Name: "Read More", Value: fmt.Sprintf("[Visit Blog Post](%s)", notification.Link)},
		},
	}
	if notification.Thumbnail != "" {
		e.Thumbnail = &embedMedia{URL: notification.Thumbnail}
	}
	if notification.Image != "" {
		e.Image = &embedMedia{URL: notification.Image}
	}
	return e
}
