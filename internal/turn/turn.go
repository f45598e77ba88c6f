// ABOUTME: Turn execution pump plus the two canonical-event consumers
// ABOUTME: Aggregate blocks until the turn ends; Stream pushes text deltas as they arrive

package turn

import (
	"context"
	"strings"

	"github.com/2389/crew-gateway/internal/agent"
	"github.com/2389/crew-gateway/internal/event"
)

// FallbackResponse is returned by Aggregate when a turn produces no text.
const FallbackResponse = "抱歉，我無法處理這個請求。"

// Observer sees every canonical sub-event as it is dispatched. Used for
// console tracing; a nil observer is fine.
type Observer func(event.Canonical)

// Sink receives the streaming emitter's output. Exactly one of Done or
// Error is called per turn, after all Text calls.
type Sink interface {
	// Text delivers one response fragment.
	Text(text string) error
	// Done marks normal completion; the terminal sentinel.
	Done() error
	// Error reports a failed turn in place of the sentinel.
	Error(err error) error
}

// pump pulls raw events one at a time, normalizes each, and hands every
// canonical sub-event to dispatch before requesting the next raw event.
// This is the only suspension point inside a turn: consumption is strictly
// sequential and stops promptly on context cancellation, so a departed
// caller never leaves background work running.
func pump(ctx context.Context, events <-chan agent.TurnEvent, dispatch func(event.Canonical) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case te, ok := <-events:
			if !ok {
				return nil
			}
			if te.Err != nil {
				return te.Err
			}
			for _, ce := range event.Normalize(te.Raw) {
				if err := dispatch(ce); err != nil {
					return err
				}
			}
		}
	}
}

// Aggregate consumes the whole turn and returns the concatenated response
// text. With zero text deltas the fixed fallback string is returned. On any
// mid-sequence failure the causal error propagates and no text is returned;
// partial fragments are discarded.
func Aggregate(ctx context.Context, events <-chan agent.TurnEvent, obs Observer) (string, error) {
	var b strings.Builder
	deltas := 0

	err := pump(ctx, events, func(ce event.Canonical) error {
		if obs != nil {
			obs(ce)
		}
		if delta, ok := ce.(event.TextDelta); ok {
			b.WriteString(delta.Text)
			deltas++
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if deltas == 0 {
		return FallbackResponse, nil
	}
	return b.String(), nil
}

// Stream consumes the turn incrementally, forwarding each text delta to the
// sink as soon as it is produced. On success exactly one Done call follows
// the deltas; on failure exactly one Error call replaces it. There are no
// retries, and fragments already delivered are never retracted: a stream
// that ends in Error is partial output.
func Stream(ctx context.Context, events <-chan agent.TurnEvent, sink Sink, obs Observer) error {
	err := pump(ctx, events, func(ce event.Canonical) error {
		if obs != nil {
			obs(ce)
		}
		if delta, ok := ce.(event.TextDelta); ok {
			return sink.Text(delta.Text)
		}
		return nil
	})
	if err != nil {
		sink.Error(err)
		return err
	}
	return sink.Done()
}
