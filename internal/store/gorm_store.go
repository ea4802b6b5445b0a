package store

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Hojaeaga/replyguy-monorepo/internal/domain"
	"github.com/Hojaeaga/replyguy-monorepo/pkg/database"
	pkglog "github.com/Hojaeaga/replyguy-monorepo/pkg/log"
)

// GormStore implements Store using GORM.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a GORM-based store.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Migrate runs auto-migration for all store-owned tables.
func (s *GormStore) Migrate() error {
	return database.AutoMigrate(s.db,
		&domain.UserEmbeddingModel{},
		&domain.CastReplyModel{},
		&domain.SimilarityEdgeModel{},
	)
}

// FindReplyRecord returns the reply record for a cast, or nil when the
// cast has not been replied to.
func (s *GormStore) FindReplyRecord(ctx context.Context, castHash string) (*ReplyRecord, error) {
	var model domain.CastReplyModel
	result := s.db.WithContext(ctx).First(&model, "cast_hash = ?", castHash)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find reply record: %w", result.Error)
	}
	return &ReplyRecord{CastHash: model.CastHash, ReplyHash: model.ReplyHash}, nil
}

// InsertReplyRecord records a posted reply. The unique index on
// cast_hash plus ON CONFLICT DO NOTHING gives conflict-as-success
// semantics: if another worker won the race, the reply is already
// recorded and this call reports success.
func (s *GormStore) InsertReplyRecord(ctx context.Context, castHash, replyHash string) error {
	l := pkglog.Ctx(ctx)

	model := domain.CastReplyModel{CastHash: castHash, ReplyHash: replyHash}
	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "cast_hash"}},
			DoNothing: true,
		}).
		Create(&model)
	if result.Error != nil {
		return fmt.Errorf("failed to insert reply record: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		l.Debug().Str(pkglog.FieldCastHash, castHash).Msg("reply record already exists")
	}
	return nil
}

// IsSubscribed reports whether the fid has an active subscription.
func (s *GormStore) IsSubscribed(ctx context.Context, fid int64) (bool, error) {
	var count int64
	result := s.db.WithContext(ctx).Model(&domain.UserEmbeddingModel{}).
		Where("fid = ? AND is_subscribed = ?", fid, true).
		Count(&count)
	if result.Error != nil {
		return false, fmt.Errorf("failed to check subscription: %w", result.Error)
	}
	return count > 0, nil
}

// GetUser returns the stored profile for a fid.
func (s *GormStore) GetUser(ctx context.Context, fid int64) (*domain.UserProfile, error) {
	var model domain.UserEmbeddingModel
	result := s.db.WithContext(ctx).First(&model, "fid = ?", fid)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", result.Error)
	}
	return model.ToDomain(), nil
}

// RegisterUser creates a subscribed profile with summary and embedding.
func (s *GormStore) RegisterUser(ctx context.Context, fid int64, summary string, keywords []string, embedding []float64) error {
	l := pkglog.Ctx(ctx)

	model := domain.UserEmbeddingModel{
		FID:          fid,
		Summary:      summary,
		Keywords:     database.StringArray(keywords),
		Embedding:    database.Vector(embedding),
		IsSubscribed: true,
	}
	result := s.db.WithContext(ctx).Create(&model)
	if result.Error != nil {
		return fmt.Errorf("failed to register user: %w", result.Error)
	}

	l.Debug().Int64(pkglog.FieldFID, fid).Msg("user registered")
	return nil
}

// SubscribeUser re-activates an existing profile.
func (s *GormStore) SubscribeUser(ctx context.Context, fid int64) error {
	result := s.db.WithContext(ctx).Model(&domain.UserEmbeddingModel{}).
		Where("fid = ?", fid).
		Updates(map[string]interface{}{"is_subscribed": true, "is_unsubscribed": false})
	if result.Error != nil {
		return fmt.Errorf("failed to subscribe user: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// UnsubscribeUser deactivates a profile, keeping its embedding so a
// later re-subscribe does not recompute it.
func (s *GormStore) UnsubscribeUser(ctx context.Context, fid int64) error {
	result := s.db.WithContext(ctx).Model(&domain.UserEmbeddingModel{}).
		Where("fid = ?", fid).
		Updates(map[string]interface{}{"is_subscribed": false, "is_unsubscribed": true})
	if result.Error != nil {
		return fmt.Errorf("failed to unsubscribe user: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// ListSubscribedFIDs returns all actively subscribed fids.
func (s *GormStore) ListSubscribedFIDs(ctx context.Context) ([]int64, error) {
	var fids []int64
	result := s.db.WithContext(ctx).Model(&domain.UserEmbeddingModel{}).
		Where("is_subscribed = ?", true).
		Pluck("fid", &fids)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list subscribed fids: %w", result.Error)
	}
	return fids, nil
}

// NearestByEmbedding ranks subscribed users by cosine similarity against
// vec. Embeddings are stored as portable JSON vectors, so the ranking
// runs in-process rather than in vector-extension SQL.
func (s *GormStore) NearestByEmbedding(ctx context.Context, vec []float64, threshold float64, k int) ([]domain.SimilarUser, error) {
	if k <= 0 {
		return nil, nil
	}

	var models []domain.UserEmbeddingModel
	result := s.db.WithContext(ctx).
		Where("is_subscribed = ?", true).
		Find(&models)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to load embeddings: %w", result.Error)
	}

	query := database.Vector(vec)
	matches := make([]domain.SimilarUser, 0, len(models))
	for _, m := range models {
		sim := database.Cosine(query, m.Embedding)
		if sim >= threshold {
			matches = append(matches, domain.SimilarUser{
				FID:        m.FID,
				Similarity: sim,
				Summary:    m.Summary,
			})
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// UpsertSimilarityEdges refreshes weighted edges, updating the score on
// conflict. Pairs are normalized to fid_a < fid_b before writing.
func (s *GormStore) UpsertSimilarityEdges(ctx context.Context, edges []domain.SimilarityEdge) error {
	if len(edges) == 0 {
		return nil
	}

	models := make([]domain.SimilarityEdgeModel, 0, len(edges))
	for _, e := range edges {
		e = domain.NewSimilarityEdge(e.FIDA, e.FIDB, e.Similarity)
		models = append(models, domain.SimilarityEdgeModel{
			FIDA:       e.FIDA,
			FIDB:       e.FIDB,
			Similarity: e.Similarity,
		})
	}

	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "fid_a"}, {Name: "fid_b"}},
			DoUpdates: clause.AssignmentColumns([]string{"similarity", "updated_at"}),
		}).
		Create(&models)
	if result.Error != nil {
		return fmt.Errorf("failed to upsert similarity edges: %w", result.Error)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ensure interface is satisfied at compile time.
var _ Store = (*GormStore)(nil)
