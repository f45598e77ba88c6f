// ABOUTME: Tests for identity resolution and guest synthesis
// ABOUTME: Verifies deterministic guests, state map contents, and directory lookup behavior

package identity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuest_Deterministic(t *testing.T) {
	a := Guest("ZZZZ")
	b := Guest("ZZZZ")

	assert.Equal(t, a, b)
	assert.Equal(t, "訪客_ZZZZ", a.Name)
	assert.Equal(t, "未知", a.Department)
	assert.Equal(t, "ZZZZ@guest.local", a.Email)
}

func TestStateMap_IncludesRegisteredFlag(t *testing.T) {
	state := Guest("U1").StateMap()

	assert.Equal(t, true, state["is_registered"])
	assert.Equal(t, "U1", state["user_id"])
	assert.Equal(t, "訪客_U1", state["user_name"])
}

func TestStateMap_OmitsEmptyOptionals(t *testing.T) {
	id := &Identity{UserID: "EMP009", Name: "someone", Department: "ops", Email: "x@y"}
	state := id.StateMap()

	_, hasTitle := state["job_title"]
	_, hasPhone := state["phone"]
	assert.False(t, hasTitle)
	assert.False(t, hasPhone)

	full := &Identity{UserID: "EMP010", Name: "n", Department: "d", Email: "e", JobTitle: "t", Phone: "p"}
	state = full.StateMap()
	assert.Equal(t, "t", state["job_title"])
	assert.Equal(t, "p", state["phone"])
}

func TestDirectory_Resolve(t *testing.T) {
	dir := NewDirectory(DefaultUsers(), nil)
	ctx := context.Background()

	id, err := dir.Resolve(ctx, "EMP001")
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, "王小明", id.Name)

	// Lookup is case-insensitive on the id.
	id, err = dir.Resolve(ctx, "emp001")
	require.NoError(t, err)
	require.NotNil(t, id)

	// Absence is (nil, nil), not an error.
	id, err = dir.Resolve(ctx, "ZZZZ")
	require.NoError(t, err)
	assert.Nil(t, id)
}

func TestDirectory_LatencyHonorsCancellation(t *testing.T) {
	dir := NewDirectory(DefaultUsers(), nil, WithLatency(5*time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := dir.Resolve(ctx, "EMP001")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
