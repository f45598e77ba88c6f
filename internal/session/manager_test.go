// ABOUTME: Tests for the session manager
// ABOUTME: Verifies guest fallback, identity refresh, state merging, and create-race adoption

package session

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/crew-gateway/internal/identity"
	"github.com/2389/crew-gateway/internal/store"
)

// countingResolver wraps a directory and counts Resolve calls.
type countingResolver struct {
	dir   *identity.Directory
	calls int
	err   error
}

func (c *countingResolver) Resolve(ctx context.Context, userID string) (*identity.Identity, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return c.dir.Resolve(ctx, userID)
}

func newManager(t *testing.T, opts ...Option) (*Manager, *countingResolver) {
	t.Helper()
	resolver := &countingResolver{dir: identity.NewDirectory(identity.DefaultUsers(), nil)}
	return NewManager(store.NewMemoryStore(), resolver, nil, opts...), resolver
}

func TestGetOrCreate_KnownUserSeedsState(t *testing.T) {
	mgr, _ := newManager(t)
	ctx := context.Background()

	sid, ident, err := mgr.GetOrCreate(ctx, "meeting_room", "EMP001", "")
	require.NoError(t, err)
	require.NotEmpty(t, sid)
	assert.Equal(t, "王小明", ident.Name)

	state, err := mgr.Load(ctx, "meeting_room", "EMP001", sid)
	require.NoError(t, err)
	assert.Equal(t, "王小明", state["user_name"])
	assert.Equal(t, "資訊部", state["department"])
	assert.Equal(t, true, state["is_registered"])
}

func TestGetOrCreate_UnknownUserGetsGuest(t *testing.T) {
	mgr, _ := newManager(t)
	ctx := context.Background()

	sid, ident, err := mgr.GetOrCreate(ctx, "meeting_room", "ZZZZ", "")
	require.NoError(t, err)
	assert.Equal(t, "訪客_ZZZZ", ident.Name)

	state, err := mgr.Load(ctx, "meeting_room", "ZZZZ", sid)
	require.NoError(t, err)
	assert.Equal(t, "訪客_ZZZZ", state["user_name"])
	assert.Equal(t, "未知", state["department"])
	assert.Equal(t, true, state["is_registered"])
}

func TestGetOrCreate_ResolverFailureAbsorbedAsGuest(t *testing.T) {
	mgr, resolver := newManager(t)
	resolver.err = errors.New("directory timeout")

	_, ident, err := mgr.GetOrCreate(context.Background(), "meeting_room", "EMP001", "")
	require.NoError(t, err)
	assert.Equal(t, "訪客_EMP001", ident.Name)
}

func TestGetOrCreate_ExistingSessionMergesNotReplaces(t *testing.T) {
	mgr, _ := newManager(t)
	ctx := context.Background()

	sid, _, err := mgr.GetOrCreate(ctx, "meeting_room", "EMP001", "")
	require.NoError(t, err)

	// A tool writes a key between turns.
	state, err := mgr.Load(ctx, "meeting_room", "EMP001", sid)
	require.NoError(t, err)
	state["last_booking_id"] = "BK202601010001"
	require.NoError(t, mgr.Save(ctx, "meeting_room", "EMP001", sid, state))

	// Second turn with the same session id: same id back, tool key intact.
	sid2, _, err := mgr.GetOrCreate(ctx, "meeting_room", "EMP001", sid)
	require.NoError(t, err)
	assert.Equal(t, sid, sid2)

	state, err = mgr.Load(ctx, "meeting_room", "EMP001", sid)
	require.NoError(t, err)
	assert.Equal(t, "BK202601010001", state["last_booking_id"])
	assert.Equal(t, "王小明", state["user_name"])
}

func TestGetOrCreate_IdentityRefreshedEveryCall(t *testing.T) {
	mgr, resolver := newManager(t)
	ctx := context.Background()

	sid, _, err := mgr.GetOrCreate(ctx, "meeting_room", "EMP001", "")
	require.NoError(t, err)
	_, _, err = mgr.GetOrCreate(ctx, "meeting_room", "EMP001", sid)
	require.NoError(t, err)

	assert.Equal(t, 2, resolver.calls)
}

func TestGetOrCreate_ExplicitSessionIDUsedForNewSession(t *testing.T) {
	mgr, _ := newManager(t)

	sid, _, err := mgr.GetOrCreate(context.Background(), "meeting_room", "EMP002", "my-session")
	require.NoError(t, err)
	assert.Equal(t, "my-session", sid)
}

func TestGetOrCreate_NamespacesIsolateAgents(t *testing.T) {
	mgr, _ := newManager(t)
	ctx := context.Background()

	sid, _, err := mgr.GetOrCreate(ctx, "meeting_room", "EMP001", "shared-id")
	require.NoError(t, err)
	_, _, err = mgr.GetOrCreate(ctx, "expense", "EMP001", "shared-id")
	require.NoError(t, err)

	state, err := mgr.Load(ctx, "meeting_room", "EMP001", sid)
	require.NoError(t, err)
	state["room"] = "A-101"
	require.NoError(t, mgr.Save(ctx, "meeting_room", "EMP001", sid, state))

	other, err := mgr.Load(ctx, "expense", "EMP001", "shared-id")
	require.NoError(t, err)
	_, crossed := other["room"]
	assert.False(t, crossed)
}

func TestGetOrCreate_ConcurrentFirstTurnsAdoptOneSession(t *testing.T) {
	mgr, _ := newManager(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	ids := make([]string, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sid, _, err := mgr.GetOrCreate(ctx, "meeting_room", "EMP003", "first-turn")
			require.NoError(t, err)
			ids[i] = sid
		}(i)
	}
	wg.Wait()

	for _, sid := range ids {
		assert.Equal(t, "first-turn", sid)
	}

	state, err := mgr.Load(ctx, "meeting_room", "EMP003", "first-turn")
	require.NoError(t, err)
	assert.Equal(t, "張大偉", state["user_name"])
}

func TestSerialize_NoOpByDefault(t *testing.T) {
	mgr, _ := newManager(t)

	unlock := mgr.Serialize("meeting_room", "EMP001", "s")
	unlock()
	// Must not deadlock when taken twice.
	unlock = mgr.Serialize("meeting_room", "EMP001", "s")
	unlock()
}

func TestSerialize_BlocksSecondHolder(t *testing.T) {
	mgr, _ := newManager(t, WithTurnSerialization())

	unlock := mgr.Serialize("meeting_room", "EMP001", "s")

	acquired := make(chan struct{})
	go func() {
		u := mgr.Serialize("meeting_room", "EMP001", "s")
		close(acquired)
		u()
	}()

	select {
	case <-acquired:
		t.Fatal("second holder acquired lock while first still held it")
	default:
	}

	unlock()
	<-acquired
}
