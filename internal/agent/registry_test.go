// ABOUTME: Tests for the agent registry
// ABOUTME: Verifies duplicate rejection, lookup errors, and insertion-ordered listing

package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_RegisterAndLookup(t *testing.T) {
	r := NewRegistry(nil)

	require.NoError(t, r.Register(&Descriptor{ID: "meeting_room", Name: "會議室預約助理"}))

	desc, err := r.Lookup("meeting_room")
	require.NoError(t, err)
	assert.Equal(t, "會議室預約助理", desc.Name)
}

func TestRegistry_DuplicateRegistration(t *testing.T) {
	r := NewRegistry(nil)

	require.NoError(t, r.Register(&Descriptor{ID: "meeting_room"}))
	err := r.Register(&Descriptor{ID: "meeting_room"})
	assert.ErrorIs(t, err, ErrAgentAlreadyRegistered)
}

func TestRegistry_LookupUnknown(t *testing.T) {
	r := NewRegistry(nil)

	_, err := r.Lookup("nope")
	assert.ErrorIs(t, err, ErrAgentNotFound)
}

func TestRegistry_ListPreservesInsertionOrder(t *testing.T) {
	r := NewRegistry(nil)

	for _, id := range []string{"meeting_room", "assistant", "expense"} {
		require.NoError(t, r.Register(&Descriptor{ID: id}))
	}

	assert.Equal(t, []string{"meeting_room", "assistant", "expense"}, r.IDs())

	list := r.List()
	require.Len(t, list, 3)
	assert.Equal(t, "meeting_room", list[0].ID)
	assert.Equal(t, "expense", list[2].ID)
}
