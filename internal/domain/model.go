package domain

import (
	"time"

	"github.com/Hojaeaga/replyguy-monorepo/pkg/database"
)

// UserEmbeddingModel is the GORM model for the user_embeddings table.
type UserEmbeddingModel struct {
	FID            int64                `gorm:"primaryKey"`
	Summary        string               `gorm:"type:text"`
	Keywords       database.StringArray `gorm:"type:text"`
	Embedding      database.Vector      `gorm:"type:text"`
	IsSubscribed   bool                 `gorm:"index;not null;default:false"`
	IsUnsubscribed bool                 `gorm:"not null;default:false"`
	CreatedAt      time.Time            `gorm:"autoCreateTime"`
	UpdatedAt      time.Time            `gorm:"autoUpdateTime"`
}

// TableName specifies the table name for UserEmbeddingModel.
func (UserEmbeddingModel) TableName() string {
	return "user_embeddings"
}

// ToDomain converts UserEmbeddingModel to a domain UserProfile.
func (m *UserEmbeddingModel) ToDomain() *UserProfile {
	return &UserProfile{
		FID:          m.FID,
		Summary:      m.Summary,
		Keywords:     []string(m.Keywords),
		Embedding:    []float64(m.Embedding),
		IsSubscribed: m.IsSubscribed,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

// CastReplyModel is the GORM model for the cast_replies table. The
// unique index on CastHash is what makes the pipeline's idempotency
// gate safe under concurrent redelivery: a second insert for the same
// cast conflicts instead of producing a duplicate record.
type CastReplyModel struct {
	ID        uint      `gorm:"primaryKey"`
	CastHash  string    `gorm:"type:varchar(66);uniqueIndex;not null"`
	ReplyHash string    `gorm:"type:varchar(66);not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// TableName specifies the table name for CastReplyModel.
func (CastReplyModel) TableName() string {
	return "cast_replies"
}

// SimilarityEdgeModel is the GORM model for the similarity_edges table.
// Edges are stored directionless with fid_a < fid_b, enforced by the
// composite unique index.
type SimilarityEdgeModel struct {
	ID         uint      `gorm:"primaryKey"`
	FIDA       int64     `gorm:"column:fid_a;uniqueIndex:idx_edge_pair;not null"`
	FIDB       int64     `gorm:"column:fid_b;uniqueIndex:idx_edge_pair;not null"`
	Similarity float64   `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime"`
}

// TableName specifies the table name for SimilarityEdgeModel.
func (SimilarityEdgeModel) TableName() string {
	return "similarity_edges"
}

// ToDomain converts SimilarityEdgeModel to a domain SimilarityEdge.
func (m *SimilarityEdgeModel) ToDomain() SimilarityEdge {
	return SimilarityEdge{FIDA: m.FIDA, FIDB: m.FIDB, Similarity: m.Similarity}
}
