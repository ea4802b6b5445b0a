package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/Hojaeaga/replyguy-monorepo/internal/ai"
	"github.com/Hojaeaga/replyguy-monorepo/internal/domain"
	"github.com/Hojaeaga/replyguy-monorepo/internal/social"
	"github.com/Hojaeaga/replyguy-monorepo/internal/store"
	pkglog "github.com/Hojaeaga/replyguy-monorepo/pkg/log"
	"github.com/Hojaeaga/replyguy-monorepo/pkg/retry"
)

// RegistrationStatus reports what Register did for a fid.
type RegistrationStatus string

const (
	// StatusAlreadySubscribed means no change was needed.
	StatusAlreadySubscribed RegistrationStatus = "already_subscribed"
	// StatusResubscribed means an existing profile was re-activated.
	StatusResubscribed RegistrationStatus = "resubscribed"
	// StatusRegistered means a new profile was created and subscribed.
	StatusRegistered RegistrationStatus = "registered"
)

// Service manages subscription state: registration builds the user's
// interest profile; subscribe/unsubscribe toggle delivery and keep the
// webhook author-fid filter in sync.
type Service struct {
	store  store.Store
	ai     ai.Client
	social social.Client
}

// NewService creates a user Service.
func NewService(st store.Store, aiClient ai.Client, socialClient social.Client) *Service {
	return &Service{store: st, ai: aiClient, social: socialClient}
}

// Register opts a fid into auto-replies. New users get a summary and
// embedding computed from their recent feed; existing users are only
// re-subscribed, keeping their stored embedding.
func (s *Service) Register(ctx context.Context, fid int64) (RegistrationStatus, error) {
	l := pkglog.Ctx(ctx).With().Int64(pkglog.FieldFID, fid).Logger()
	ctx = pkglog.WithLogger(ctx, l)

	profile, err := s.store.GetUser(ctx, fid)
	switch {
	case err == nil && profile.IsSubscribed:
		l.Info().Msg("user already subscribed")
		return StatusAlreadySubscribed, nil

	case err == nil:
		if err := s.store.SubscribeUser(ctx, fid); err != nil {
			return "", fmt.Errorf("failed to subscribe user: %w", err)
		}
		if err := s.syncWebhook(ctx); err != nil {
			l.Warn().Err(err).Msg("failed to sync webhook filter")
		}
		l.Info().Msg("user resubscribed")
		return StatusResubscribed, nil

	case errors.Is(err, store.ErrUserNotFound):
		return s.registerNew(ctx, fid)

	default:
		return "", fmt.Errorf("failed to check user status: %w", err)
	}
}

// registerNew builds the interest profile for a first-time fid.
func (s *Service) registerNew(ctx context.Context, fid int64) (RegistrationStatus, error) {
	l := pkglog.Ctx(ctx)

	// The feed fetch is the flakiest upstream call here and the result
	// gates everything after it, so it gets a retry policy.
	var feed []domain.Feed
	err := retry.Do(ctx, retry.DefaultOptions(), func(ctx context.Context) error {
		var err error
		feed, err = s.social.FetchUserFeed(ctx, fid)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to fetch user feed: %w", err)
	}

	summary, err := s.ai.SummarizeUser(ctx, feed)
	if err != nil {
		return "", fmt.Errorf("failed to summarize user: %w", err)
	}

	if err := s.store.RegisterUser(ctx, fid, summary.Summary, summary.Keywords, summary.Embedding); err != nil {
		return "", fmt.Errorf("failed to register user: %w", err)
	}

	if err := s.syncWebhook(ctx); err != nil {
		l.Warn().Err(err).Msg("failed to sync webhook filter")
	}

	l.Info().Msg("user registered and subscribed")
	return StatusRegistered, nil
}

// Unsubscribe opts a fid out and removes it from the webhook filter.
// The stored embedding is kept for a later re-subscribe.
func (s *Service) Unsubscribe(ctx context.Context, fid int64) error {
	l := pkglog.Ctx(ctx).With().Int64(pkglog.FieldFID, fid).Logger()
	ctx = pkglog.WithLogger(ctx, l)

	if err := s.store.UnsubscribeUser(ctx, fid); err != nil {
		return err
	}
	if err := s.syncWebhook(ctx); err != nil {
		l.Warn().Err(err).Msg("failed to sync webhook filter")
	}

	l.Info().Msg("user unsubscribed")
	return nil
}

// syncWebhook replaces the webhook author-fid filter with the current
// set of subscribed fids, so the ingestion endpoint only receives casts
// the pipeline could act on.
func (s *Service) syncWebhook(ctx context.Context) error {
	fids, err := s.store.ListSubscribedFIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list subscribed fids: %w", err)
	}
	return s.social.UpdateWebhookFIDs(ctx, fids)
}
