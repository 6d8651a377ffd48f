package chat

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/chatdesk-ai/chatdesk/internal/ai"
	"github.com/chatdesk-ai/chatdesk/internal/store"
)

// fallbackReply is sent when the pipeline fails outright. Bilingual because
// the desk serves Thai and English customers.
const fallbackReply = "ขออภัยค่ะ ระบบขัดข้องชั่วคราว เจ้าหน้าที่จะติดต่อกลับโดยเร็วที่สุด / " +
	"Sorry, we hit a temporary problem. A support agent will get back to you shortly."

// fallbackResult is the terminal backstop: whatever goes wrong inside the
// pipeline, the caller gets this instead of an error.
func fallbackResult() *Result {
	return &Result{
		Reply:      fallbackReply,
		Confidence: 0,
		Intent:     ai.IntentResult{Intent: ai.IntentGeneralInquiry, Err: true},
		Escalation: EscalationVerdict{
			ShouldEscalate: true,
			Priority:       PriorityHigh,
			Reason:         "system_error",
		},
	}
}

// Processor is the single entry point of the message pipeline.
type Processor struct {
	classifier *ai.Classifier
	retriever  *ai.Retriever
	responder  *ai.Responder
	stores     *store.Stores
	log        *slog.Logger

	escMu     sync.RWMutex
	escalator *Escalator
}

// ProcessorConfig wires the pipeline stages together.
type ProcessorConfig struct {
	Classifier *ai.Classifier
	Retriever  *ai.Retriever
	Responder  *ai.Responder
	Escalator  *Escalator
	Stores     *store.Stores
	Logger     *slog.Logger
}

// NewProcessor creates a message processor.
func NewProcessor(cfg ProcessorConfig) *Processor {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Escalator == nil {
		cfg.Escalator = NewEscalator(EscalatorConfig{})
	}
	return &Processor{
		classifier: cfg.Classifier,
		retriever:  cfg.Retriever,
		responder:  cfg.Responder,
		escalator:  cfg.Escalator,
		stores:     cfg.Stores,
		log:        cfg.Logger,
	}
}

// ProcessMessage runs the pipeline for one inbound customer message. It never
// returns an error: any failure not absorbed by a stage-local fallback is
// converted to the safe escalation result. The escalation verdict only
// signals — suppressing or supplementing the reply is transport policy.
func (p *Processor) ProcessMessage(ctx context.Context, senderID, text string, mode Mode) (result *Result) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("pipeline panic, returning fallback", "sender", senderID, "panic", r)
			result = fallbackResult()
		}
	}()

	switch mode {
	case ModeStaff:
		result = p.processStaffAssisted(ctx, senderID, text)
	default:
		result = p.processAssistant(ctx, senderID, text)
	}
	return result
}

func (p *Processor) processAssistant(ctx context.Context, senderID, text string) *Result {
	started := time.Now()

	// Classification and retrieval touch independent backends; overlap them.
	// Neither stage errors — both degrade internally.
	var (
		intent ai.IntentResult
		docs   []ai.ContextDocument
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		intent = p.classifier.DetectIntent(gctx, text)
		return nil
	})
	g.Go(func() error {
		docs = p.retriever.QueryRelevant(gctx, text)
		return nil
	})
	g.Wait()

	profile := p.lookupProfile(ctx, senderID)

	resp, err := p.responder.Generate(ctx, text, docs, profile)
	if err != nil {
		p.log.Error("response generation exhausted retries", "sender", senderID, "error", err)
		p.persistExchange(ctx, senderID, text, intent, fallbackResult())
		return fallbackResult()
	}

	p.escMu.RLock()
	escalator := p.escalator
	p.escMu.RUnlock()
	verdict := escalator.Evaluate(text, intent.Intent, resp.Confidence)
	result := &Result{
		Reply:      resp.Text,
		Confidence: resp.Confidence,
		Intent:     intent,
		Escalation: verdict,
	}

	p.persistExchange(ctx, senderID, text, intent, result)
	p.log.Info("message processed",
		"sender", senderID,
		"intent", intent.Intent,
		"confidence", resp.Confidence,
		"escalate", verdict.ShouldEscalate,
		"priority", verdict.Priority,
		"context_docs", len(docs),
		"duration", time.Since(started),
	)
	return result
}

func (p *Processor) processStaffAssisted(ctx context.Context, senderID, text string) *Result {
	var (
		intent ai.IntentResult
		docs   []ai.ContextDocument
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		intent = p.classifier.DetectIntent(gctx, text)
		return nil
	})
	g.Go(func() error {
		docs = p.retriever.QueryTop(gctx, text, 3)
		return nil
	})
	g.Wait()

	suggestions, err := p.responder.Suggest(ctx, text, docs)
	if err != nil {
		p.log.Error("suggestion generation failed", "sender", senderID, "error", err)
		return fallbackResult()
	}

	var top float64
	for _, s := range suggestions {
		if s.Confidence > top {
			top = s.Confidence
		}
	}

	// A human is already in the loop: no escalation evaluation.
	return &Result{
		Suggestions: suggestions,
		Confidence:  top,
		Intent:      intent,
		Escalation:  EscalationVerdict{Priority: PriorityLow, Reason: reasonNone},
	}
}

// SetEscalator swaps the escalation evaluator. Called on config reload so
// keyword-table edits take effect without a restart.
func (p *Processor) SetEscalator(e *Escalator) {
	if e == nil {
		return
	}
	p.escMu.Lock()
	p.escalator = e
	p.escMu.Unlock()
}

// ProcessStaffReply records a human-authored reply so the index-sync job can
// turn the exchange into retrievable context.
func (p *Processor) ProcessStaffReply(ctx context.Context, senderID, staffID, text string) error {
	if p.stores == nil || p.stores.Conversations == nil {
		return nil
	}
	return p.stores.Conversations.RecordStaffReply(ctx, store.MessageRecord{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ConversationID: senderID,
		CustomerID:     senderID,
		StaffID:        staffID,
		Role:           "staff",
		Text:           text,
	})
}

// lookupProfile fetches the customer profile, registering first contact when
// none exists. Store failures degrade to an anonymous profile.
func (p *Processor) lookupProfile(ctx context.Context, senderID string) store.CustomerProfile {
	if p.stores == nil || p.stores.Customers == nil {
		return store.CustomerProfile{ID: senderID}
	}
	prof, err := p.stores.Customers.GetProfile(ctx, senderID)
	if err == nil {
		return *prof
	}
	if err := p.stores.Customers.TouchConversation(ctx, senderID, ""); err != nil {
		p.log.Warn("customer profile unavailable", "sender", senderID, "error", err)
	}
	return store.CustomerProfile{ID: senderID}
}

// persistExchange appends the customer message and the pipeline's reply.
// Persistence failures are logged, never surfaced — the customer still gets
// their answer.
func (p *Processor) persistExchange(ctx context.Context, senderID, text string, intent ai.IntentResult, result *Result) {
	if p.stores == nil || p.stores.Conversations == nil {
		return
	}
	err := p.stores.Conversations.AppendMessage(ctx, store.MessageRecord{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ConversationID: senderID,
		CustomerID:     senderID,
		Role:           "customer",
		Text:           text,
		Intent:         string(intent.Intent),
		Confidence:     intent.Confidence,
		Escalated:      result.Escalation.ShouldEscalate,
	})
	if err != nil {
		p.log.Warn("persist customer message failed", "sender", senderID, "error", err)
	}
	err = p.stores.Conversations.AppendMessage(ctx, store.MessageRecord{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ConversationID: senderID,
		CustomerID:     senderID,
		Role:           "assistant",
		Text:           result.Reply,
		Confidence:     result.Confidence,
		Escalated:      result.Escalation.ShouldEscalate,
	})
	if err != nil {
		p.log.Warn("persist assistant reply failed", "sender", senderID, "error", err)
	}
}
