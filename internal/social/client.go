package social

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Hojaeaga/replyguy-monorepo/internal/domain"
)

// ErrPostFailed marks an ambiguous or failed reply post. The pipeline
// logs it and does not retry, to avoid duplicate replies.
var ErrPostFailed = errors.New("failed to post reply")

// Client is the social-graph collaborator: feed reads, reply posting,
// and webhook subscription management.
type Client interface {
	// FetchUserFeed returns a user's recent casts.
	FetchUserFeed(ctx context.Context, fid int64) ([]domain.Feed, error)

	// FetchTrending returns the global trending feed.
	FetchTrending(ctx context.Context) ([]domain.Feed, error)

	// PostReply publishes a reply cast and returns its identity.
	PostReply(ctx context.Context, req ReplyRequest) (*PostedCast, error)

	// FetchSubscribedFIDs returns the author fids currently registered
	// on the cast.created webhook.
	FetchSubscribedFIDs(ctx context.Context) ([]int64, error)

	// UpdateWebhookFIDs replaces the webhook's author-fid filter.
	UpdateWebhookFIDs(ctx context.Context, fids []int64) error
}

// ReplyRequest is the payload for posting a reply.
type ReplyRequest struct {
	Text       string   `json:"text"`
	ParentHash string   `json:"parent_hash"`
	Embeds     []string `json:"embeds,omitempty"`
}

// PostedCast identifies a successfully published cast.
type PostedCast struct {
	Hash string `json:"hash"`
}

// Config holds Farcaster API client configuration.
type Config struct {
	BaseURL    string        `mapstructure:"base_url"`
	APIKey     string        `mapstructure:"api_key"`
	SignerUUID string        `mapstructure:"signer_uuid"`
	WebhookID  string        `mapstructure:"webhook_id"`
	WebhookURL string        `mapstructure:"webhook_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// HTTPClient talks to a Neynar-shaped Farcaster API.
type HTTPClient struct {
	cfg    Config
	client *http.Client
}

// NewHTTPClient creates a Farcaster API client.
func NewHTTPClient(cfg Config) *HTTPClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPClient{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	u := c.cfg.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("x-api-key", c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("farcaster api request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("farcaster api returned status %d for %s", resp.StatusCode, path)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode farcaster api response: %w", err)
		}
	}
	return nil
}

// wireCast is the API's cast shape, trimmed to what we consume.
type wireCast struct {
	Hash   string `json:"hash"`
	Text   string `json:"text"`
	Author struct {
		FID      int64  `json:"fid"`
		Username string `json:"username"`
	} `json:"author"`
	Timestamp time.Time `json:"timestamp"`
	Channel   *struct {
		ID string `json:"id"`
	} `json:"channel"`
	Embeds []struct {
		URL string `json:"url"`
	} `json:"embeds"`
	Reactions struct {
		LikesCount   int `json:"likes_count"`
		RecastsCount int `json:"recasts_count"`
	} `json:"reactions"`
}

func (w *wireCast) toFeed() domain.Feed {
	f := domain.Feed{
		Hash:      w.Hash,
		FID:       w.Author.FID,
		Author:    w.Author.Username,
		Text:      w.Text,
		Timestamp: w.Timestamp,
		Likes:     w.Reactions.LikesCount,
		Recasts:   w.Reactions.RecastsCount,
	}
	if w.Channel != nil {
		f.Channel = w.Channel.ID
	}
	for _, e := range w.Embeds {
		if e.URL != "" {
			f.EmbedURLs = append(f.EmbedURLs, e.URL)
		}
	}
	return f
}

type feedResponse struct {
	Casts []wireCast `json:"casts"`
}

// FetchUserFeed returns a user's recent casts, newest first.
func (c *HTTPClient) FetchUserFeed(ctx context.Context, fid int64) ([]domain.Feed, error) {
	q := url.Values{"fid": []string{strconv.FormatInt(fid, 10)}}
	var resp feedResponse
	if err := c.do(ctx, http.MethodGet, "/feed/user/casts", q, nil, &resp); err != nil {
		return nil, err
	}

	feeds := make([]domain.Feed, 0, len(resp.Casts))
	for i := range resp.Casts {
		feeds = append(feeds, resp.Casts[i].toFeed())
	}
	return feeds, nil
}

// FetchTrending returns the global trending feed.
func (c *HTTPClient) FetchTrending(ctx context.Context) ([]domain.Feed, error) {
	var resp feedResponse
	if err := c.do(ctx, http.MethodGet, "/feed/trending", nil, nil, &resp); err != nil {
		return nil, err
	}

	feeds := make([]domain.Feed, 0, len(resp.Casts))
	for i := range resp.Casts {
		feeds = append(feeds, resp.Casts[i].toFeed())
	}
	return feeds, nil
}

type postCastRequest struct {
	SignerUUID string  `json:"signer_uuid"`
	Text       string  `json:"text"`
	Parent     string  `json:"parent,omitempty"`
	Embeds     []embed `json:"embeds,omitempty"`
}

type embed struct {
	URL string `json:"url"`
}

type postCastResponse struct {
	Cast *struct {
		Hash string `json:"hash"`
	} `json:"cast"`
}

// PostReply publishes replyText as a reply to the parent cast.
func (c *HTTPClient) PostReply(ctx context.Context, req ReplyRequest) (*PostedCast, error) {
	body := postCastRequest{
		SignerUUID: c.cfg.SignerUUID,
		Text:       req.Text,
		Parent:     req.ParentHash,
	}
	for _, u := range req.Embeds {
		body.Embeds = append(body.Embeds, embed{URL: u})
	}

	var resp postCastResponse
	if err := c.do(ctx, http.MethodPost, "/cast", nil, body, &resp); err != nil {
		return nil, err
	}
	if resp.Cast == nil || resp.Cast.Hash == "" {
		return nil, ErrPostFailed
	}
	return &PostedCast{Hash: resp.Cast.Hash}, nil
}

type webhookResponse struct {
	Webhook *struct {
		Subscription struct {
			Filters map[string]struct {
				AuthorFIDs []int64 `json:"author_fids"`
			} `json:"filters"`
		} `json:"subscription"`
	} `json:"webhook"`
}

// FetchSubscribedFIDs returns the author fids on the cast.created
// webhook filter.
func (c *HTTPClient) FetchSubscribedFIDs(ctx context.Context) ([]int64, error) {
	q := url.Values{"webhook_id": []string{c.cfg.WebhookID}}
	var resp webhookResponse
	if err := c.do(ctx, http.MethodGet, "/webhook", q, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Webhook == nil {
		return nil, nil
	}
	return resp.Webhook.Subscription.Filters[domain.EventTypeCastCreated].AuthorFIDs, nil
}

type updateWebhookRequest struct {
	WebhookID    string                 `json:"webhook_id"`
	Name         string                 `json:"name"`
	URL          string                 `json:"url"`
	Subscription map[string]interface{} `json:"subscription"`
}

// UpdateWebhookFIDs replaces the webhook's author-fid filter so only
// subscribed users' casts are delivered.
func (c *HTTPClient) UpdateWebhookFIDs(ctx context.Context, fids []int64) error {
	body := updateWebhookRequest{
		WebhookID: c.cfg.WebhookID,
		Name:      "receiveCast",
		URL:       c.cfg.WebhookURL,
		Subscription: map[string]interface{}{
			domain.EventTypeCastCreated: map[string]interface{}{
				"author_fids": fids,
			},
		},
	}
	return c.do(ctx, http.MethodPut, "/webhook", nil, body, nil)
}

// Ensure interface is satisfied at compile time.
var _ Client = (*HTTPClient)(nil)
