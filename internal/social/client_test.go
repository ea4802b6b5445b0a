package social

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hojaeaga/replyguy-monorepo/internal/domain"
)

const feedJSON = `{
	"casts": [
		{
			"hash": "0xfeed",
			"text": "shipped a new release",
			"author": {"fid": 7, "username": "builder"},
			"channel": {"id": "dev"},
			"embeds": [{"url": "https://example.com"}],
			"reactions": {"likes_count": 3, "recasts_count": 1}
		}
	]
}`

func TestFetchUserFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/feed/user/casts", r.URL.Path)
		assert.Equal(t, "7", r.URL.Query().Get("fid"))
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))

		w.Write([]byte(feedJSON))
	}))
	defer srv.Close()

	c := NewHTTPClient(Config{BaseURL: srv.URL, APIKey: "test-key"})
	feed, err := c.FetchUserFeed(context.Background(), 7)
	require.NoError(t, err)

	require.Len(t, feed, 1)
	assert.Equal(t, domain.Feed{
		Hash:      "0xfeed",
		FID:       7,
		Author:    "builder",
		Text:      "shipped a new release",
		Channel:   "dev",
		EmbedURLs: []string{"https://example.com"},
		Likes:     3,
		Recasts:   1,
	}, feed[0])
}

func TestFetchTrending(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/feed/trending", r.URL.Path)
		w.Write([]byte(feedJSON))
	}))
	defer srv.Close()

	c := NewHTTPClient(Config{BaseURL: srv.URL})
	feed, err := c.FetchTrending(context.Background())
	require.NoError(t, err)
	require.Len(t, feed, 1)
	assert.Equal(t, "0xfeed", feed[0].Hash)
}

func TestPostReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/cast", r.URL.Path)

		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "signer-1", req["signer_uuid"])
		assert.Equal(t, "try the streams API", req["text"])
		assert.Equal(t, "0xabc", req["parent"])

		w.Write([]byte(`{"cast": {"hash": "0xreply"}}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(Config{BaseURL: srv.URL, SignerUUID: "signer-1"})
	posted, err := c.PostReply(context.Background(), ReplyRequest{
		Text:       "try the streams API",
		ParentHash: "0xabc",
	})
	require.NoError(t, err)
	assert.Equal(t, "0xreply", posted.Hash)
}

func TestPostReplyWithoutCastIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(Config{BaseURL: srv.URL})
	_, err := c.PostReply(context.Background(), ReplyRequest{Text: "x", ParentHash: "0xabc"})
	assert.ErrorIs(t, err, ErrPostFailed)
}

func TestFetchSubscribedFIDs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/webhook", r.URL.Path)
		assert.Equal(t, "wh-1", r.URL.Query().Get("webhook_id"))

		w.Write([]byte(`{
			"webhook": {
				"subscription": {
					"filters": {
						"cast.created": {"author_fids": [7, 42]}
					}
				}
			}
		}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(Config{BaseURL: srv.URL, WebhookID: "wh-1"})
	fids, err := c.FetchSubscribedFIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int64{7, 42}, fids)
}

func TestUpdateWebhookFIDs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, "/webhook", r.URL.Path)

		var req struct {
			WebhookID    string `json:"webhook_id"`
			URL          string `json:"url"`
			Subscription map[string]struct {
				AuthorFIDs []int64 `json:"author_fids"`
			} `json:"subscription"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "wh-1", req.WebhookID)
		assert.Equal(t, "https://ingest.example.com/farcaster/webhook/receiveCast", req.URL)
		assert.Equal(t, []int64{7, 42}, req.Subscription["cast.created"].AuthorFIDs)

		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(Config{
		BaseURL:    srv.URL,
		WebhookID:  "wh-1",
		WebhookURL: "https://ingest.example.com/farcaster/webhook/receiveCast",
	})
	err := c.UpdateWebhookFIDs(context.Background(), []int64{7, 42})
	require.NoError(t, err)
}
