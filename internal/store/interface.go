package store

import (
	"context"
	"errors"

	"github.com/Hojaeaga/replyguy-monorepo/internal/domain"
)

var (
	// ErrUserNotFound is returned when no profile exists for a fid.
	ErrUserNotFound = errors.New("user not found")
)

// ReplyRecord is persisted evidence that a cast has been replied to.
type ReplyRecord struct {
	CastHash  string
	ReplyHash string
}

// Store is the datastore collaborator consumed by the pipeline and the
// registration service.
type Store interface {
	// FindReplyRecord returns the reply record for a cast, or nil if the
	// cast has not been replied to.
	FindReplyRecord(ctx context.Context, castHash string) (*ReplyRecord, error)

	// InsertReplyRecord records a posted reply. A concurrent insert for
	// the same cast hash is treated as success, making the idempotency
	// gate safe under redelivery races.
	InsertReplyRecord(ctx context.Context, castHash, replyHash string) error

	// IsSubscribed reports whether the fid has an active subscription.
	IsSubscribed(ctx context.Context, fid int64) (bool, error)

	// GetUser returns the stored profile for a fid, or ErrUserNotFound.
	GetUser(ctx context.Context, fid int64) (*domain.UserProfile, error)

	// RegisterUser creates a profile with its interest summary and
	// embedding, subscribed from the start.
	RegisterUser(ctx context.Context, fid int64, summary string, keywords []string, embedding []float64) error

	// SubscribeUser re-activates an existing profile.
	SubscribeUser(ctx context.Context, fid int64) error

	// UnsubscribeUser deactivates a profile, keeping its embedding.
	UnsubscribeUser(ctx context.Context, fid int64) error

	// ListSubscribedFIDs returns all actively subscribed fids.
	ListSubscribedFIDs(ctx context.Context) ([]int64, error)

	// NearestByEmbedding returns up to k subscribed users whose stored
	// embeddings have cosine similarity >= threshold with vec, ordered
	// most similar first.
	NearestByEmbedding(ctx context.Context, vec []float64, threshold float64, k int) ([]domain.SimilarUser, error)

	// UpsertSimilarityEdges refreshes weighted edges between users,
	// updating the score when the pair already exists.
	UpsertSimilarityEdges(ctx context.Context, edges []domain.SimilarityEdge) error

	Close() error
}
