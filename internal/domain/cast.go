package domain

import (
	"errors"
	"time"
)

// Validation errors for inbound cast events. These mark malformed jobs
// that are abandoned without retry.
var (
	ErrMissingCast = errors.New("event has no cast")
	ErrMissingHash = errors.New("cast has no hash")
	ErrMissingFID  = errors.New("cast author has no fid")
)

// Author identifies the user who published a cast.
type Author struct {
	FID         int64  `json:"fid"`
	Username    string `json:"username,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
}

// Cast is a single post on the social protocol, identified by its
// content hash. ParentHash is set iff the cast is itself a reply.
type Cast struct {
	Hash       string    `json:"hash"`
	Text       string    `json:"text"`
	Author     Author    `json:"author"`
	ParentHash string    `json:"parent_hash,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	Replies    int       `json:"replies,omitempty"`
	Likes      int       `json:"likes,omitempty"`
	Recasts    int       `json:"recasts,omitempty"`
}

// IsReply reports whether the cast replies to another cast.
func (c *Cast) IsReply() bool {
	return c.ParentHash != ""
}

// CastEvent is the job payload enqueued for each cast.created webhook
// delivery. The queue treats it as an opaque JSON blob; the payload is
// immutable once enqueued.
type CastEvent struct {
	Type       string    `json:"type"`
	Cast       *Cast     `json:"cast"`
	ReceivedAt time.Time `json:"received_at"`
}

// EventTypeCastCreated is the only event type the pipeline consumes.
const EventTypeCastCreated = "cast.created"

// Validate checks the structural requirements for processing. A missing
// text is tolerated (callers log a warning) and is not checked here.
func (e *CastEvent) Validate() error {
	if e.Cast == nil {
		return ErrMissingCast
	}
	if e.Cast.Hash == "" {
		return ErrMissingHash
	}
	if e.Cast.Author.FID == 0 {
		return ErrMissingFID
	}
	return nil
}

// Feed is one entry of a user or trending feed fetched from the social
// graph, trimmed to what the reply decision needs.
type Feed struct {
	Hash      string    `json:"hash"`
	FID       int64     `json:"fid"`
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	Channel   string    `json:"channel,omitempty"`
	EmbedURLs []string  `json:"embed_urls,omitempty"`
	Likes     int       `json:"likes,omitempty"`
	Recasts   int       `json:"recasts,omitempty"`
}

// SimilarUser is one nearest-neighbor result from the similarity index.
type SimilarUser struct {
	FID        int64   `json:"fid"`
	Similarity float64 `json:"similarity"`
	Summary    string  `json:"summary"`
}

// PeerFeed pairs a similar user's interest summary with their recent
// casts. An empty Casts slice with a non-empty Summary marks a degraded
// fetch; the summary is still usable context.
type PeerFeed struct {
	FID     int64  `json:"fid"`
	Summary string `json:"summary"`
	Casts   []Feed `json:"casts"`
}

// NeedsReply is the AI verdict on whether a cast warrants a reply.
type NeedsReply struct {
	Status     bool    `json:"status"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason,omitempty"`
}

// ReplyDecision is the structured output of the reply-generation stage.
type ReplyDecision struct {
	NeedsReply NeedsReply `json:"needs_reply"`
	ReplyText  string     `json:"reply_text"`
	Embeds     []string   `json:"embeds,omitempty"`
}

// SimilarityEdge is a weighted relation between two users, refreshed
// opportunistically per processed cast. Edges are directionless; FIDA is
// always the smaller fid.
type SimilarityEdge struct {
	FIDA       int64   `json:"fid_a"`
	FIDB       int64   `json:"fid_b"`
	Similarity float64 `json:"similarity"`
}

// NewSimilarityEdge builds an edge with normalized fid ordering.
func NewSimilarityEdge(fid1, fid2 int64, similarity float64) SimilarityEdge {
	if fid1 > fid2 {
		fid1, fid2 = fid2, fid1
	}
	return SimilarityEdge{FIDA: fid1, FIDB: fid2, Similarity: similarity}
}

// UserProfile is the stored interest profile for a registered user.
type UserProfile struct {
	FID          int64     `json:"fid"`
	Summary      string    `json:"summary"`
	Keywords     []string  `json:"keywords,omitempty"`
	Embedding    []float64 `json:"embedding,omitempty"`
	IsSubscribed bool      `json:"is_subscribed"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
