package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/Hojaeaga/replyguy-monorepo/internal/ai"
	"github.com/Hojaeaga/replyguy-monorepo/internal/domain"
	"github.com/Hojaeaga/replyguy-monorepo/internal/queue"
	"github.com/Hojaeaga/replyguy-monorepo/internal/social"
	"github.com/Hojaeaga/replyguy-monorepo/internal/store"
	pkglog "github.com/Hojaeaga/replyguy-monorepo/pkg/log"
)

// Outcome is the terminal state of one processed cast.
type Outcome string

const (
	// OutcomeInvalid marks a malformed job, abandoned without retry.
	OutcomeInvalid Outcome = "invalid"
	// OutcomeAlreadyReplied marks the idempotency gate firing.
	OutcomeAlreadyReplied Outcome = "already_replied"
	// OutcomeIsReply marks a cast that is itself a reply.
	OutcomeIsReply Outcome = "is_reply"
	// OutcomeNotSubscribed marks an author without a subscription.
	OutcomeNotSubscribed Outcome = "not_subscribed"
	// OutcomeNoReplyNeeded marks a negative AI decision.
	OutcomeNoReplyNeeded Outcome = "no_reply_needed"
	// OutcomePostFailed marks an ambiguous post failure, not retried to
	// avoid duplicate replies.
	OutcomePostFailed Outcome = "post_failed"
	// OutcomeReplied marks a posted and recorded reply.
	OutcomeReplied Outcome = "replied"
	// OutcomeError marks an upstream-fatal failure; the job stays
	// pending for redelivery.
	OutcomeError Outcome = "error"
)

// Config is the tunable reply policy.
type Config struct {
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
	MaxPeers            int     `mapstructure:"max_peers"`
	FanOutLimit         int64   `mapstructure:"fan_out_limit"`
}

// DefaultConfig returns the default reply policy.
func DefaultConfig() Config {
	return Config{
		SimilarityThreshold: 0.4,
		MaxPeers:            3,
		FanOutLimit:         5,
	}
}

// Processor is the cast-processing state machine. All collaborators are
// injected; the processor holds no ambient connections of its own.
type Processor struct {
	store  store.Store
	ai     ai.Client
	social social.Client
	cfg    Config
}

// NewProcessor creates a Processor with explicit dependencies.
func NewProcessor(st store.Store, aiClient ai.Client, socialClient social.Client, cfg Config) *Processor {
	if cfg.MaxPeers <= 0 {
		cfg.MaxPeers = 3
	}
	if cfg.FanOutLimit <= 0 {
		cfg.FanOutLimit = 5
	}
	return &Processor{store: st, ai: aiClient, social: socialClient, cfg: cfg}
}

// Handle is the queue handler: it validates the payload at the queue
// boundary and runs the pipeline. Malformed payloads are logged and
// abandoned; they have no retry value. Only upstream-fatal errors
// propagate, leaving the entry unacknowledged.
func (p *Processor) Handle(ctx context.Context, msg queue.Message) error {
	l := pkglog.Ctx(ctx)

	var event domain.CastEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		l.Error().Err(err).Str(pkglog.FieldJobID, msg.ID).Msg("malformed job payload, abandoning")
		return nil
	}

	_, err := p.Process(ctx, &event)
	return err
}

// Process runs the decision pipeline for one cast event. Stages execute
// strictly in order, each a short-circuit gate. Gate terminations and
// degraded continuations return a nil error; only upstream-fatal
// conditions (embedding, reply decision) surface as errors.
func (p *Processor) Process(ctx context.Context, event *domain.CastEvent) (Outcome, error) {
	started := time.Now()
	l := pkglog.Ctx(ctx)

	// Stage 1: validate.
	if err := event.Validate(); err != nil {
		l.Warn().Err(err).Msg("invalid cast event, abandoning")
		return OutcomeInvalid, nil
	}

	cast := event.Cast
	l = l.With().Str(pkglog.FieldCastHash, cast.Hash).Int64(pkglog.FieldFID, cast.Author.FID).Logger()
	ctx = pkglog.WithLogger(ctx, l)

	if cast.Text == "" {
		l.Warn().Msg("cast has no text")
	}

	l.Info().Msg("processing cast")

	// Stage 2: idempotency gate. A lookup failure fails open: the
	// unique constraint on cast_replies is the backstop.
	if record, err := p.store.FindReplyRecord(ctx, cast.Hash); err != nil {
		l.Warn().Err(err).Msg("reply record lookup failed, continuing")
	} else if record != nil {
		p.logStage(l, "idempotency_gate", started)
		l.Info().Str(pkglog.FieldReplyHash, record.ReplyHash).Msg("cast already replied to, skipping")
		return OutcomeAlreadyReplied, nil
	}

	// Stage 3: reply filter. Only top-level casts get replies.
	if cast.IsReply() {
		p.logStage(l, "reply_filter", started)
		l.Info().Msg("cast is a reply, skipping")
		return OutcomeIsReply, nil
	}

	// Stage 4: subscription gate.
	subscribed, err := p.store.IsSubscribed(ctx, cast.Author.FID)
	if err != nil {
		return OutcomeError, fmt.Errorf("subscription lookup failed: %w", err)
	}
	if !subscribed {
		p.logStage(l, "subscription_gate", started)
		l.Info().Msg("author is not subscribed, skipping")
		return OutcomeNotSubscribed, nil
	}

	// Stage 5: embedding. Failure is fatal for this job; the entry
	// stays pending for redelivery.
	embedding, err := p.ai.GenerateEmbedding(ctx, cast.Text)
	if err != nil {
		return OutcomeError, fmt.Errorf("embedding generation failed: %w", err)
	}
	p.logStage(l, "embedding", started)

	// Stage 6: peer discovery, excluding the author.
	similar, err := p.store.NearestByEmbedding(ctx, embedding, p.cfg.SimilarityThreshold, p.cfg.MaxPeers)
	if err != nil {
		return OutcomeError, fmt.Errorf("similarity search failed: %w", err)
	}
	peers := make([]domain.SimilarUser, 0, len(similar))
	for _, u := range similar {
		if u.FID == cast.Author.FID {
			continue
		}
		peers = append(peers, u)
	}
	p.logStage(l, "peer_discovery", started)

	// Stage 7: feed aggregation, best-effort on both sides.
	peerFeeds := p.fetchPeerFeeds(ctx, peers)

	trending, err := p.social.FetchTrending(ctx)
	if err != nil {
		l.Warn().Err(err).Msg("trending feed fetch failed, continuing with empty set")
		trending = []domain.Feed{}
	}
	p.logStage(l, "feed_aggregation", started)

	// Stage 8: reply decision.
	decision, err := p.ai.GenerateReply(ctx, cast, peerFeeds, trending)
	if err != nil {
		return OutcomeError, fmt.Errorf("reply decision failed: %w", err)
	}
	if decision == nil {
		return OutcomeError, fmt.Errorf("reply decision failed: %w", ai.ErrNoDecision)
	}
	p.logStage(l, "reply_decision", started)

	outcome := OutcomeNoReplyNeeded
	if decision.NeedsReply.Status {
		outcome = p.publishReply(ctx, cast, decision)
	} else {
		l.Info().
			Float64("confidence", decision.NeedsReply.Confidence).
			Str("reason", decision.NeedsReply.Reason).
			Msg("no reply needed")
	}

	// Stage 11: similarity refresh, regardless of reply outcome.
	p.refreshEdges(ctx, cast.Author.FID, peers)

	l.Info().
		Str("outcome", string(outcome)).
		Float64(pkglog.FieldLatency, float64(time.Since(started).Milliseconds())).
		Msg("cast processed")
	return outcome, nil
}

// fetchPeerFeeds fans out one feed fetch per discovered peer, bounded by
// FanOutLimit, and joins deterministically. A failed fetch degrades that
// peer to an empty feed with its summary preserved; it never cancels the
// sibling fetches.
func (p *Processor) fetchPeerFeeds(ctx context.Context, peers []domain.SimilarUser) []domain.PeerFeed {
	l := pkglog.Ctx(ctx)

	feeds := make([]domain.PeerFeed, len(peers))
	sem := semaphore.NewWeighted(p.cfg.FanOutLimit)
	var wg sync.WaitGroup

	for i, peer := range peers {
		feeds[i] = domain.PeerFeed{FID: peer.FID, Summary: peer.Summary, Casts: []domain.Feed{}}

		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(i int, fid int64) {
			defer wg.Done()
			defer sem.Release(1)

			casts, err := p.social.FetchUserFeed(ctx, fid)
			if err != nil {
				l.Warn().Err(err).Int64(pkglog.FieldFID, fid).Msg("peer feed fetch failed, degrading to empty feed")
				return
			}
			feeds[i].Casts = casts
		}(i, peer.FID)
	}

	wg.Wait()
	return feeds
}

// publishReply posts the reply and records it. An ambiguous post failure
// terminates the job without retry; a record-write failure after a
// successful post is a warning only, since the reply already exists
// externally.
func (p *Processor) publishReply(ctx context.Context, cast *domain.Cast, decision *domain.ReplyDecision) Outcome {
	l := pkglog.Ctx(ctx)

	// Stage 9: publish.
	posted, err := p.social.PostReply(ctx, social.ReplyRequest{
		Text:       decision.ReplyText,
		ParentHash: cast.Hash,
		Embeds:     decision.Embeds,
	})
	if err != nil || posted == nil {
		l.Error().Err(err).Msg("failed to post reply, not retrying")
		return OutcomePostFailed
	}

	// Stage 10: persist. The reply is already delivered; a failed write
	// here is an accepted at-least-once-reply / best-effort-record gap.
	if err := p.store.InsertReplyRecord(ctx, cast.Hash, posted.Hash); err != nil {
		l.Warn().Err(err).Str(pkglog.FieldReplyHash, posted.Hash).Msg("failed to record reply")
	}

	l.Info().
		Str(pkglog.FieldReplyHash, posted.Hash).
		Float64("confidence", decision.NeedsReply.Confidence).
		Msg("reply posted")
	return OutcomeReplied
}

// refreshEdges upserts similarity edges from the author to the peers
// discovered for this cast, reusing the already-computed scores.
// Failures are logged and absorbed.
func (p *Processor) refreshEdges(ctx context.Context, authorFID int64, peers []domain.SimilarUser) {
	if len(peers) == 0 {
		return
	}

	edges := make([]domain.SimilarityEdge, 0, len(peers))
	for _, peer := range peers {
		edges = append(edges, domain.NewSimilarityEdge(authorFID, peer.FID, peer.Similarity))
	}

	if err := p.store.UpsertSimilarityEdges(ctx, edges); err != nil {
		l := pkglog.Ctx(ctx)
		l.Warn().Err(err).Msg("failed to refresh similarity edges")
	}
}

func (p *Processor) logStage(l zerolog.Logger, stage string, started time.Time) {
	l.Debug().
		Str(pkglog.FieldStage, stage).
		Float64(pkglog.FieldLatency, float64(time.Since(started).Milliseconds())).
		Msg("stage completed")
}
