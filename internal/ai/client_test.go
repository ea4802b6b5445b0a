package ai

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

func TestGenerateEmbedding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/generate-embedding", r.URL.Path)

		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "hello", req["input_data"])

		json.NewEncoder(w).Encode(map[string]interface{}{"embeddings": []float64{0.1, 0.2}})
	}))
	defer srv.Close()

	c := NewHTTPClient(Config{BaseURL: srv.URL})
	vec, err := c.GenerateEmbedding(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.2}, vec)
}

func TestGenerateEmbeddingEmptyVectorIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"embeddings": []float64{}})
	}))
	defer srv.Close()

	c := NewHTTPClient(Config{BaseURL: srv.URL})
	_, err := c.GenerateEmbedding(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrEmptyEmbedding)
}

func TestGenerateReplyFlattensAgentResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate-reply", r.URL.Path)

		var req struct {
			Cast             *domain.Cast      `json:"cast"`
			SimilarUserFeeds []domain.PeerFeed `json:"similar_user_feeds"`
			TrendingFeeds    []domain.Feed     `json:"trending_feeds"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotNil(t, req.Cast)
		assert.Equal(t, "0xabc", req.Cast.Hash)
		assert.NotNil(t, req.SimilarUserFeeds)
		assert.NotNil(t, req.TrendingFeeds)

		w.Write([]byte(`{
			"intent_analysis": {
				"should_reply": true,
				"confidence": 0.87,
				"identified_needs": ["tool recommendation"]
			},
			"reply": {
				"reply_text": "try the streams API",
				"link": ["https://example.com/docs"]
			}
		}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(Config{BaseURL: srv.URL})
	cast := &domain.Cast{Hash: "0xabc", Text: "any tips?", Author: domain.Author{FID: 42}}

	decision, err := c.GenerateReply(context.Background(), cast, nil, nil)
	require.NoError(t, err)
	assert.True(t, decision.NeedsReply.Status)
	assert.InDelta(t, 0.87, decision.NeedsReply.Confidence, 1e-9)
	assert.Equal(t, "tool recommendation", decision.NeedsReply.Reason)
	assert.Equal(t, "try the streams API", decision.ReplyText)
	assert.Equal(t, []string{"https://example.com/docs"}, decision.Embeds)
}

func TestGenerateReplyWithoutIntentIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(Config{BaseURL: srv.URL})
	_, err := c.GenerateReply(context.Background(), &domain.Cast{Hash: "0xabc"}, nil, nil)
	assert.ErrorIs(t, err, ErrNoDecision)
}

func TestGenerateReplyNon200IsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewHTTPClient(Config{BaseURL: srv.URL})
	_, err := c.GenerateReply(context.Background(), &domain.Cast{Hash: "0xabc"}, nil, nil)
	assert.Error(t, err)
}

func TestSummarizeUser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/user-summary", r.URL.Path)

		var req struct {
			UserData []domain.Feed `json:"user_data"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.UserData, 1)

		w.Write([]byte(`{
			"user_summary": {
				"keywords": ["golang", "redis"],
				"raw_summary": "golang and distributed systems"
			},
			"user_embeddings": {
				"vector": [0.1, 0.2],
				"dimensions": 2
			}
		}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(Config{BaseURL: srv.URL})
	summary, err := c.SummarizeUser(context.Background(), []domain.Feed{{Hash: "0xfeed", Text: "a cast"}})
	require.NoError(t, err)
	assert.Equal(t, "golang and distributed systems", summary.Summary)
	assert.Equal(t, []string{"golang", "redis"}, summary.Keywords)
	assert.Equal(t, []float64{0.1, 0.2}, summary.Embedding)
}

func TestSummarizeUserIncompleteResponseIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"user_summary": {"raw_summary": "x"}}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(Config{BaseURL: srv.URL})
	_, err := c.SummarizeUser(context.Background(), nil)
	assert.Error(t, err)
}
