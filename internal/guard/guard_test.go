// ABOUTME: Tests for the tool invocation guard
// ABOUTME: Verifies blocking of unverified callers and trusted user_id injection

package guard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func registeredState(userID string) map[string]any {
	return map[string]any{"is_registered": true, "user_id": userID}
}

func TestCheck_BlocksUnregisteredGatedTool(t *testing.T) {
	p := New("book_room")

	tests := []struct {
		name  string
		state map[string]any
	}{
		{"empty state", map[string]any{}},
		{"explicit false", map[string]any{"is_registered": false}},
		{"non-bool flag", map[string]any{"is_registered": "yes"}},
		{"nil state", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := p.Check("book_room", map[string]any{}, tt.state)
			assert.False(t, d.Allowed)
			assert.Equal(t, DefaultBlockMessage, d.Reason)
		})
	}
}

func TestCheck_UngatedToolPassesThroughUntouched(t *testing.T) {
	p := New("book_room")
	args := map[string]any{"building_id": "A"}

	d := p.Check("list_buildings", args, nil)

	require.True(t, d.Allowed)
	assert.Equal(t, args, d.Args)
	_, injected := d.Args["user_id"]
	assert.False(t, injected)
}

func TestCheck_EmptySetGatesEverything(t *testing.T) {
	p := New()

	d := p.Check("anything", map[string]any{}, map[string]any{})
	assert.False(t, d.Allowed)

	d = p.Check("anything", map[string]any{}, registeredState("EMP001"))
	require.True(t, d.Allowed)
	assert.Equal(t, "EMP001", d.Args["user_id"])
}

func TestCheck_OverwritesCallerSuppliedUserID(t *testing.T) {
	p := New("cancel_booking")
	args := map[string]any{"booking_id": "BK1", "user_id": "EMP999"}

	d := p.Check("cancel_booking", args, registeredState("EMP001"))

	require.True(t, d.Allowed)
	assert.Equal(t, "EMP001", d.Args["user_id"])
	assert.Equal(t, "BK1", d.Args["booking_id"])

	// The caller's map is left alone; only the decision copy is mutated.
	assert.Equal(t, "EMP999", args["user_id"])
}

func TestCheck_CustomBlockMessage(t *testing.T) {
	p := New().WithBlockMessage("not today")

	d := p.Check("x", nil, nil)
	assert.Equal(t, "not today", d.Reason)
}

func TestBlockedResult_Payload(t *testing.T) {
	payload := BlockedResult("reason")
	assert.Equal(t, "blocked", payload["status"])
	assert.Equal(t, "reason", payload["error_message"])
}
