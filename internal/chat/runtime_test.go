package chat

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/chatdesk-ai/chatdesk/internal/bus"
)

func startRuntime(t *testing.T, proc *Processor) *bus.MessageBus {
	t.Helper()
	b := bus.NewMessageBus()
	rt := NewRuntime(proc, b, 2)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go rt.Run(ctx)
	return b
}

// TestRuntime_RepliesAndBroadcastsEscalation verifies an escalating message
// produces both an outbound reply and an operator event.
func TestRuntime_RepliesAndBroadcastsEscalation(t *testing.T) {
	p := &scriptedProvider{
		intentJSON: `{"intent": "GENERAL_INQUIRY", "confidence": 0.9}`,
		replyText:  "สักครู่นะคะ",
	}
	b := startRuntime(t, newTestProcessor(t, p))

	events := make(chan bus.Event, 4)
	b.Subscribe("test", func(e bus.Event) { events <- e })

	b.PublishInbound(bus.InboundMessage{
		Channel:  "telegram",
		SenderID: "u1",
		ChatID:   "chat-1",
		Content:  "ขอคุยกับเจ้าหน้าที่",
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	out, ok := b.ConsumeOutbound(ctx)
	if !ok {
		t.Fatal("no outbound reply")
	}
	if out.Channel != "telegram" || out.ChatID != "chat-1" {
		t.Fatalf("reply misrouted: %+v", out)
	}

	select {
	case e := <-events:
		if e.Name != "escalation" {
			t.Fatalf("event name = %q", e.Name)
		}
		ev, ok := e.Payload.(bus.EscalationEvent)
		if !ok {
			t.Fatalf("payload type %T", e.Payload)
		}
		if ev.Priority != "high" || ev.SenderID != "u1" {
			t.Fatalf("event = %+v", ev)
		}
		if !ev.Factors[factorExplicitRequest] {
			t.Fatalf("event factors missing explicit request: %+v", ev.Factors)
		}
	case <-ctx.Done():
		t.Fatal("no escalation event")
	}
}

// TestRuntime_StaffModeFormatsSuggestions verifies staff console messages get
// a numbered suggestion list and no escalation event.
func TestRuntime_StaffModeFormatsSuggestions(t *testing.T) {
	p := &scriptedProvider{
		intentJSON: `{"intent": "CARD", "confidence": 0.9}`,
		replyText:  `[{"text": "Option A", "confidence": 0.9}, {"text": "Option B", "confidence": 0.8}]`,
	}
	b := startRuntime(t, newTestProcessor(t, p))

	var gotEvent atomic.Bool
	b.Subscribe("test", func(bus.Event) { gotEvent.Store(true) })

	b.PublishInbound(bus.InboundMessage{
		Channel: "telegram", SenderID: "u2", ChatID: "staff-chat",
		Content: "customer asks about card", Staff: true, StaffID: "agent-1",
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	out, ok := b.ConsumeOutbound(ctx)
	if !ok {
		t.Fatal("no outbound suggestions")
	}
	if !strings.Contains(out.Content, "1. Option A") || !strings.Contains(out.Content, "2. Option B") {
		t.Fatalf("suggestions not formatted: %q", out.Content)
	}
	if gotEvent.Load() {
		t.Fatal("staff mode broadcast an escalation event")
	}
}

// TestRuntime_StaffReplyRecordsResolvedPair verifies a staff message carrying
// a conversation ID is recorded as the answer to the customer's latest
// question and produces no outbound reply of its own.
func TestRuntime_StaffReplyRecordsResolvedPair(t *testing.T) {
	p := &scriptedProvider{
		intentJSON: `{"intent": "TRANSFER", "confidence": 0.9}`,
		replyText:  "One moment please.",
	}
	proc := newTestProcessor(t, p)
	b := startRuntime(t, proc)

	b.PublishInbound(bus.InboundMessage{
		Channel: "telegram", SenderID: "u3", ChatID: "chat-3",
		Content: "what is the transfer limit?",
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, ok := b.ConsumeOutbound(ctx); !ok {
		t.Fatal("no reply to the customer question")
	}

	b.PublishInbound(bus.InboundMessage{
		Channel: "telegram", SenderID: "u3", ChatID: "chat-3",
		Content: "The daily limit is 500,000 baht.",
		Staff:   true, StaffID: "operator:op-1",
		Metadata: map[string]string{"conversation": "u3"},
	})

	deadline := time.Now().Add(2 * time.Second)
	for {
		pairs, err := proc.stores.Conversations.ResolvedPairsSince(context.Background(), time.Time{})
		if err != nil {
			t.Fatalf("resolved pairs: %v", err)
		}
		if len(pairs) == 1 {
			if pairs[0].Answer != "The daily limit is 500,000 baht." {
				t.Fatalf("recorded wrong answer: %+v", pairs[0])
			}
			if pairs[0].Question != "what is the transfer limit?" {
				t.Fatalf("paired with wrong question: %+v", pairs[0])
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("staff reply never recorded")
		}
		time.Sleep(10 * time.Millisecond)
	}

	// The recorded answer must not bounce back out to the channel.
	shortCtx, cancelShort := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancelShort()
	if out, ok := b.ConsumeOutbound(shortCtx); ok {
		t.Fatalf("unexpected outbound for a staff reply: %+v", out)
	}
}
