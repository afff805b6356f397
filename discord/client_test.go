package discord_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"blogwatch/discord"
	"blogwatch/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendNotification(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/channels/123/messages", r.URL.Path)
		assert.Equal(t, "Bot token-abc", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := discord.NewClientWithHost(server.URL, "token-abc", "123")
	err := client.Send(context.Background(), models.Notification{
		Title:       "Patch Notes",
		Author:      "The Team",
		Description: "A new season begins",
		Link:        "https://www.fortnite.com/blog/patch-notes",
		Thumbnail:   "https://cdn.example.com/img-576x576.png",
		Image:       "https://cdn.example.com/banner.png",
		Color:       0x000000,
	})
	require.NoError(t, err)

	embeds, ok := received["embeds"].([]any)
	require.True(t, ok)
	require.Len(t, embeds, 1)

	embed := embeds[0].(map[string]any)
	assert.Equal(t, "Patch Notes", embed["title"])
	assert.Equal(t, "A new season begins", embed["description"])

	fields := embed["fields"].([]any)
	require.Len(t, fields, 2)
	author := fields[0].(map[string]any)
	assert.Equal(t, "Author", author["name"])
	assert.Equal(t, "The Team", author["value"])
	readMore := fields[1].(map[string]any)
	assert.Equal(t, "Read More", readMore["name"])
	assert.Equal(t, "[Visit Blog Post](https://www.fortnite.com/blog/patch-notes)", readMore["value"])

	thumbnail := embed["thumbnail"].(map[string]any)
	assert.Equal(t, "https://cdn.example.com/img-576x576.png", thumbnail["url"])
	image := embed["image"].(map[string]any)
	assert.Equal(t, "https://cdn.example.com/banner.png", image["url"])
}

func TestSendOmitsEmptyMedia(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := discord.NewClientWithHost(server.URL, "token", "123")
	err := client.Send(context.Background(), models.Notification{Title: "Bare"})
	require.NoError(t, err)

	embed := received["embeds"].([]any)[0].(map[string]any)
	assert.NotContains(t, embed, "thumbnail")
	assert.NotContains(t, embed, "image")
	assert.NotContains(t, embed, "description")
}

func TestSendErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"message": "Missing Access"}`))
	}))
	defer server.Close()

	client := discord.NewClientWithHost(server.URL, "token", "123")
	err := client.Send(context.Background(), models.Notification{Title: "Denied"})
	assert.Error(t, err)
}
