package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Hojaeaga/replyguy-monorepo/internal/domain"
)

// Sentinel errors for upstream-fatal AI conditions. The pipeline treats
// these as job failures eligible for redelivery.
var (
	ErrEmptyEmbedding = errors.New("ai service returned empty embedding")
	ErrNoDecision     = errors.New("ai service returned no reply decision")
)

// Client is the AI collaborator consumed by the pipeline and the
// registration service.
type Client interface {
	// GenerateEmbedding returns a vector embedding of the text.
	GenerateEmbedding(ctx context.Context, text string) ([]float64, error)

	// GenerateReply submits the cast with its peer and trending context
	// and returns the structured reply decision.
	GenerateReply(ctx context.Context, cast *domain.Cast, peerFeeds []domain.PeerFeed, trending []domain.Feed) (*domain.ReplyDecision, error)

	// SummarizeUser condenses a user's feed into an interest summary,
	// keywords, and a profile embedding.
	SummarizeUser(ctx context.Context, feed []domain.Feed) (*UserSummary, error)
}

// UserSummary is the AI-derived interest profile for a user.
type UserSummary struct {
	Summary   string
	Keywords  []string
	Embedding []float64
}

// Config holds AI agent client configuration.
type Config struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// HTTPClient talks to the AI agent service over HTTP/JSON.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient creates an AI agent client.
func NewHTTPClient(cfg Config) *HTTPClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPClient{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) postJSON(ctx context.Context, path string, body, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("ai agent request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ai agent returned status %d for %s", resp.StatusCode, path)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode ai agent response: %w", err)
	}
	return nil
}

type embeddingRequest struct {
	InputData string `json:"input_data"`
}

type embeddingResponse struct {
	Embeddings []float64 `json:"embeddings"`
}

// GenerateEmbedding returns a vector embedding of the text. An empty
// vector is an error.
func (c *HTTPClient) GenerateEmbedding(ctx context.Context, text string) ([]float64, error) {
	var resp embeddingResponse
	if err := c.postJSON(ctx, "/api/generate-embedding", embeddingRequest{InputData: text}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embeddings) == 0 {
		return nil, ErrEmptyEmbedding
	}
	return resp.Embeddings, nil
}

type generateReplyRequest struct {
	Cast             *domain.Cast      `json:"cast"`
	SimilarUserFeeds []domain.PeerFeed `json:"similar_user_feeds"`
	TrendingFeeds    []domain.Feed     `json:"trending_feeds"`
}

// generateReplyResponse mirrors the agent's wire shape; the decision the
// pipeline consumes is flattened from intent_analysis and reply.
type generateReplyResponse struct {
	IntentAnalysis *struct {
		ShouldReply     bool     `json:"should_reply"`
		Confidence      float64  `json:"confidence"`
		IdentifiedNeeds []string `json:"identified_needs"`
	} `json:"intent_analysis"`
	Reply *struct {
		ReplyText string   `json:"reply_text"`
		Links     []string `json:"link"`
	} `json:"reply"`
}

// GenerateReply submits the cast with its context and returns the reply
// decision. A response without an intent analysis is ErrNoDecision.
func (c *HTTPClient) GenerateReply(ctx context.Context, cast *domain.Cast, peerFeeds []domain.PeerFeed, trending []domain.Feed) (*domain.ReplyDecision, error) {
	if peerFeeds == nil {
		peerFeeds = []domain.PeerFeed{}
	}
	if trending == nil {
		trending = []domain.Feed{}
	}

	var resp generateReplyResponse
	req := generateReplyRequest{Cast: cast, SimilarUserFeeds: peerFeeds, TrendingFeeds: trending}
	if err := c.postJSON(ctx, "/api/generate-reply", req, &resp); err != nil {
		return nil, err
	}
	if resp.IntentAnalysis == nil {
		return nil, ErrNoDecision
	}

	decision := &domain.ReplyDecision{
		NeedsReply: domain.NeedsReply{
			Status:     resp.IntentAnalysis.ShouldReply,
			Confidence: resp.IntentAnalysis.Confidence,
		},
	}
	if len(resp.IntentAnalysis.IdentifiedNeeds) > 0 {
		decision.NeedsReply.Reason = resp.IntentAnalysis.IdentifiedNeeds[0]
	}
	if resp.Reply != nil {
		decision.ReplyText = resp.Reply.ReplyText
		decision.Embeds = resp.Reply.Links
	}
	return decision, nil
}

type userSummaryRequest struct {
	UserData []domain.Feed `json:"user_data"`
}

type userSummaryResponse struct {
	UserSummary *struct {
		Keywords   []string `json:"keywords"`
		RawSummary string   `json:"raw_summary"`
	} `json:"user_summary"`
	UserEmbeddings *struct {
		Vector     []float64 `json:"vector"`
		Dimensions int       `json:"dimensions"`
	} `json:"user_embeddings"`
}

// SummarizeUser condenses a user's feed into an interest profile.
func (c *HTTPClient) SummarizeUser(ctx context.Context, feed []domain.Feed) (*UserSummary, error) {
	var resp userSummaryResponse
	if err := c.postJSON(ctx, "/api/user-summary", userSummaryRequest{UserData: feed}, &resp); err != nil {
		return nil, err
	}
	if resp.UserSummary == nil || resp.UserEmbeddings == nil || len(resp.UserEmbeddings.Vector) == 0 {
		return nil, fmt.Errorf("ai agent returned incomplete user summary")
	}
	return &UserSummary{
		Summary:   resp.UserSummary.RawSummary,
		Keywords:  resp.UserSummary.Keywords,
		Embedding: resp.UserEmbeddings.Vector,
	}, nil
}

// Ensure interface is satisfied at compile time.
var _ Client = (*HTTPClient)(nil)
