package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Send(t *testing.T) {
	t.Run("204 accepted", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))
		defer ts.Close()

		c := NewClient(time.Second, "feedhook/1.0")
		err := c.Send(context.Background(), ts.URL, Message{Embeds: []Embed{{Type: "rich"}}})
		assert.NoError(t, err)
	})

	t.Run("429 returns status error with body", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte("rate limited"))
		}))
		defer ts.Close()

		c := NewClient(time.Second, "feedhook/1.0")
		err := c.Send(context.Background(), ts.URL, Message{})
		require.Error(t, err)

		var statusErr *StatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, http.StatusTooManyRequests, statusErr.StatusCode)
		assert.Equal(t, "rate limited", statusErr.Body)
	})

	t.Run("500 returns status error", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "internal", http.StatusInternalServerError)
		}))
		defer ts.Close()

		c := NewClient(time.Second, "")
		err := c.Send(context.Background(), ts.URL, Message{})
		var statusErr *StatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
		assert.Equal(t, "internal", statusErr.Body)
	})

	t.Run("oversized error body truncated", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(strings.Repeat("x", maxErrBody*2)))
		}))
		defer ts.Close()

		c := NewClient(time.Second, "")
		var statusErr *StatusError
		require.ErrorAs(t, c.Send(context.Background(), ts.URL, Message{}), &statusErr)
		assert.Len(t, statusErr.Body, maxErrBody)
	})

	t.Run("connection failure is not a status error", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		ts.Close() // shut down before the call

		c := NewClient(time.Second, "")
		err := c.Send(context.Background(), ts.URL, Message{})
		require.Error(t, err)
		var statusErr *StatusError
		assert.False(t, errors.As(err, &statusErr))
	})

	t.Run("context cancellation aborts", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		}))
		defer ts.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		c := NewClient(time.Second, "")
		err := c.Send(ctx, ts.URL, Message{})
		require.Error(t, err)
	})
}

func TestClient_SendPayload(t *testing.T) {
	var captured []byte
	var contentType, userAgent string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		userAgent = r.Header.Get("User-Agent")
		captured, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	msg := Message{
		Username:  "newsbot",
		AvatarURL: "http://example.com/avatar.png",
		Embeds: []Embed{{
			Type:        "rich",
			URL:         "http://example.com/post",
			Author:      EmbedAuthor{URL: "http://example.com", Name: "Example Blog"},
			Description: "## [Post](http://example.com/post)",
			Thumbnail:   &EmbedMedia{URL: "http://example.com/pic.png", Height: 100, Width: 200},
		}},
	}

	c := NewClient(time.Second, "feedhook/1.0")
	require.NoError(t, c.Send(context.Background(), ts.URL, msg))

	assert.Equal(t, "application/json", contentType)
	assert.Equal(t, "feedhook/1.0", userAgent)

	var got map[string]any
	require.NoError(t, json.Unmarshal(captured, &got))
	assert.Equal(t, "newsbot", got["username"])
	assert.Equal(t, "http://example.com/avatar.png", got["avatar_url"])

	embeds, ok := got["embeds"].([]any)
	require.True(t, ok)
	require.Len(t, embeds, 1)
	embed := embeds[0].(map[string]any)
	assert.Equal(t, "rich", embed["type"])
	assert.Equal(t, "http://example.com/post", embed["url"])
	assert.Equal(t, map[string]any{"url": "http://example.com", "name": "Example Blog"}, embed["author"])
	assert.Equal(t, map[string]any{"url": "http://example.com/pic.png", "height": float64(100), "width": float64(200)},
		embed["thumbnail"])
	assert.NotContains(t, embed, "image", "only one attachment key")

	t.Run("optional fields omitted", func(t *testing.T) {
		require.NoError(t, c.Send(context.Background(), ts.URL, Message{Embeds: []Embed{{Type: "rich"}}}))
		var bare map[string]any
		require.NoError(t, json.Unmarshal(captured, &bare))
		assert.NotContains(t, bare, "username")
		assert.NotContains(t, bare, "avatar_url")
		embed := bare["embeds"].([]any)[0].(map[string]any)
		assert.NotContains(t, embed, "thumbnail")
		assert.NotContains(t, embed, "image")
	})
}
