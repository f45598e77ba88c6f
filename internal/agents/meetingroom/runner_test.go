// ABOUTME: Tests for the meeting room runner
// ABOUTME: Verifies guard enforcement, trusted id injection, and emitted event shapes

package meetingroom

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/crew-gateway/internal/agent"
	"github.com/2389/crew-gateway/internal/event"
	"github.com/2389/crew-gateway/internal/guard"
)

func newTurn(message string, state map[string]any) *agent.Turn {
	return &agent.Turn{
		AgentID:   "meeting_room",
		UserID:    "EMP001",
		SessionID: "s1",
		Message:   message,
		State:     state,
		Guard:     guard.New(GatedTools...),
	}
}

func runTurn(t *testing.T, runner *Runner, turn *agent.Turn) []event.Canonical {
	t.Helper()
	ch, err := runner.Run(context.Background(), turn)
	require.NoError(t, err)

	var events []event.Canonical
	for te := range ch {
		require.NoError(t, te.Err)
		events = append(events, event.Normalize(te.Raw)...)
	}
	return events
}

func registeredState() map[string]any {
	return map[string]any{
		"user_id":       "EMP001",
		"user_name":     "王小明",
		"department":    "資訊部",
		"email":         "wang.xiaoming@company.com",
		"is_registered": true,
	}
}

func TestRunner_GatedToolBlockedWithoutIdentity(t *testing.T) {
	svc := fixedService()
	runner := NewRunner(svc, nil)

	events := runTurn(t, runner, newTurn("查詢我的預約", map[string]any{}))

	var sawBlocked bool
	for _, ce := range events {
		if res, ok := ce.(event.ToolResult); ok {
			payload := res.Result.(map[string]any)
			assert.Equal(t, "blocked", payload["status"])
			sawBlocked = true
		}
	}
	assert.True(t, sawBlocked, "expected a blocked tool result")

	// The tool itself must never have run; no bookings were touched.
	assert.Empty(t, svc.bookings)
}

func TestRunner_InjectsTrustedUserID(t *testing.T) {
	svc := fixedService()
	runner := NewRunner(svc, nil)

	state := registeredState()
	turn := newTurn("幫我預約 A-101 2026-09-10 09:00-10:00 5人", state)
	events := runTurn(t, runner, turn)

	var call event.ToolCall
	for _, ce := range events {
		if c, ok := ce.(event.ToolCall); ok {
			call = c
		}
	}
	require.Equal(t, "book_room", call.Name)
	assert.Equal(t, "EMP001", call.Args["user_id"])

	// The booking was made under the trusted id, and the runner wrote the
	// booking id back into session state.
	bookings := svc.MyBookings("EMP001")["bookings"].([]map[string]any)
	require.Len(t, bookings, 1)
	assert.Equal(t, state["last_booking_id"], bookings[0]["booking_id"])
}

func TestRunner_UngatedToolWorksForGuests(t *testing.T) {
	runner := NewRunner(fixedService(), nil)

	guestState := map[string]any{
		"user_id": "ZZZZ", "user_name": "訪客_ZZZZ", "is_registered": true,
	}
	events := runTurn(t, runner, newTurn("有哪些大樓？", guestState))

	var texts string
	for _, ce := range events {
		if d, ok := ce.(event.TextDelta); ok {
			texts += d.Text
		}
	}
	assert.Contains(t, texts, "3 棟大樓")
}

func TestRunner_WhoAmI(t *testing.T) {
	runner := NewRunner(fixedService(), nil)

	events := runTurn(t, runner, newTurn("我是誰", registeredState()))

	var texts string
	for _, ce := range events {
		if d, ok := ce.(event.TextDelta); ok {
			texts += d.Text
		}
	}
	assert.Contains(t, texts, "王小明")
}

func TestRunner_DefaultGreeting(t *testing.T) {
	runner := NewRunner(fixedService(), nil)

	events := runTurn(t, runner, newTurn("哈囉", registeredState()))

	require.NotEmpty(t, events)
	var texts string
	for _, ce := range events {
		delta, ok := ce.(event.TextDelta)
		require.True(t, ok, "greeting turn should emit only text")
		texts += delta.Text
	}
	assert.Contains(t, texts, "王小明")
	assert.Contains(t, texts, "會議室預約助理")
}

func TestRunner_CancelFlow(t *testing.T) {
	svc := fixedService()
	runner := NewRunner(svc, nil)
	state := registeredState()

	runTurn(t, runner, newTurn("幫我預約 B-101 2026-09-10 14:00-15:00", state))
	id, ok := state["last_booking_id"].(string)
	require.True(t, ok)

	events := runTurn(t, runner, newTurn("取消 "+id, state))

	var texts string
	for _, ce := range events {
		if d, ok := ce.(event.TextDelta); ok {
			texts += d.Text
		}
	}
	assert.Contains(t, texts, "已成功取消")
}

func TestRunner_StopsOnCancelledContext(t *testing.T) {
	runner := NewRunner(fixedService(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ch, err := runner.Run(ctx, newTurn("有哪些大樓？", registeredState()))
	require.NoError(t, err)

	// The channel must close promptly even though nobody is pulling.
	select {
	case _, open := <-ch:
		for open {
			_, open = <-ch
		}
	case <-time.After(time.Second):
		t.Fatal("runner did not stop after cancellation")
	}
}
