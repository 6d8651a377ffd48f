// Package scheduler runs background jobs. Its one job today is index sync:
// folding resolved staff Q&A pairs into the vector index so future customer
// questions retrieve them as context.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/adhocore/gronx"

	"github.com/chatdesk-ai/chatdesk/internal/providers"
	"github.com/chatdesk-ai/chatdesk/internal/store"
	"github.com/chatdesk-ai/chatdesk/internal/vector"
)

// Scheduler periodically embeds resolved Q&A pairs and upserts them into the
// vector index.
type Scheduler struct {
	conversations store.ConversationStore
	provider      providers.Provider
	index         vector.Index
	retry         providers.RetryConfig
	namespace     string
	cronExpr      string
	gron          *gronx.Gronx

	// lastSync is the watermark: only pairs answered after it are fetched.
	lastSync time.Time
}

// Config configures a Scheduler.
type Config struct {
	Conversations store.ConversationStore
	Provider      providers.Provider
	Index         vector.Index
	Retry         providers.RetryConfig
	Namespace     string
	CronExpr      string // default "*/5 * * * *"
}

// New creates an index-sync scheduler.
func New(cfg Config) (*Scheduler, error) {
	if cfg.CronExpr == "" {
		cfg.CronExpr = "*/5 * * * *"
	}
	gron := gronx.New()
	if !gron.IsValid(cfg.CronExpr) {
		return nil, fmt.Errorf("invalid sync cron expression %q", cfg.CronExpr)
	}
	return &Scheduler{
		conversations: cfg.Conversations,
		provider:      cfg.Provider,
		index:         cfg.Index,
		retry:         cfg.Retry,
		namespace:     cfg.Namespace,
		cronExpr:      cfg.CronExpr,
		gron:          gron,
		lastSync:      time.Now().UTC(),
	}, nil
}

// Run ticks every minute and syncs when the cron expression is due. Blocks
// until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			due, err := s.gron.IsDue(s.cronExpr, now)
			if err != nil || !due {
				continue
			}
			if err := s.SyncOnce(ctx); err != nil {
				slog.Error("index sync failed", "error", err)
			}
		}
	}
}

// SyncOnce fetches pairs resolved since the watermark, embeds the questions,
// and upserts them. Record IDs are derived from the question message ID, so
// re-running after a partial failure is safe: upserts are idempotent. The
// watermark only advances past pairs that made it into the index.
func (s *Scheduler) SyncOnce(ctx context.Context) error {
	pairs, err := s.conversations.ResolvedPairsSince(ctx, s.lastSync)
	if err != nil {
		return fmt.Errorf("fetch resolved pairs: %w", err)
	}
	if len(pairs) == 0 {
		return nil
	}

	synced := 0
	for _, pair := range pairs {
		vec, err := providers.ExecuteWithRetry(ctx, s.retry, func() ([]float32, error) {
			return s.provider.Embed(ctx, pair.Question)
		})
		if err != nil {
			// Stop here so the watermark stays behind this pair; the next
			// run retries it.
			slog.Warn("embed failed during index sync, deferring remainder",
				"conversation", pair.ConversationID, "error", err)
			break
		}

		rec := vector.Record{
			ID:        pair.ConversationID + ":" + pair.QuestionID,
			Namespace: s.namespace,
			Vector:    vec,
			Metadata: map[string]string{
				"question":        pair.Question,
				"answer":          pair.Answer,
				"conversation_id": pair.ConversationID,
				"customer_id":     pair.CustomerID,
				"answered_at":     pair.AnsweredAt.UTC().Format(time.RFC3339),
			},
		}
		if err := s.index.Upsert([]vector.Record{rec}); err != nil {
			slog.Warn("index upsert failed, deferring remainder", "id", rec.ID, "error", err)
			break
		}
		s.lastSync = pair.AnsweredAt
		synced++
	}

	slog.Info("index sync complete", "synced", synced, "pending", len(pairs)-synced)
	return nil
}
