package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-sync/internal/models"
)

func testSession() *session {
	return &session{
		view: models.ConversationView{
			ConversationID: "conv1",
			TypingUsers:    make(map[string]string),
		},
		phase: PhaseInitial,
	}
}

func TestBeginFetchAdmitsOneAtATime(t *testing.T) {
	s := testSession()

	require.True(t, s.beginFetch(fetchCold))
	assert.False(t, s.beginFetch(fetchCold))
	assert.False(t, s.beginFetch(fetchRefresh))

	s.endFetch()
	assert.True(t, s.beginFetch(fetchMore))
}

func TestReplaceMessagesPreservesTyping(t *testing.T) {
	s := testSession()
	s.view.TypingUsers["u2"] = "Bob"

	s.replaceMessages([]models.Message{{ID: "m1"}}, true)

	assert.Equal(t, PhaseLoaded, s.phase)
	assert.True(t, s.view.HasMoreMessages)
	assert.Equal(t, "Bob", s.view.TypingUsers["u2"])
}

func TestAppendOlderSkipsKnownIdentities(t *testing.T) {
	s := testSession()
	s.view.Messages = []models.Message{{ID: "m1"}, {ID: "m2"}}

	s.appendOlder([]models.Message{{ID: "m2"}, {ID: "m3"}})

	require.Len(t, s.view.Messages, 3)
	assert.Equal(t, "m3", s.view.Messages[2].ID)
}

func TestApplyStatusForwardOnly(t *testing.T) {
	s := testSession()
	s.view.Messages = []models.Message{{ID: "m1", Status: models.StatusSent}}

	require.NoError(t, s.applyStatus("m1", models.StatusDelivered))
	assert.Equal(t, models.StatusDelivered, s.view.Messages[0].Status)

	err := s.applyStatus("m1", models.StatusSent)
	require.ErrorIs(t, err, ErrStaleTransition)
	assert.Equal(t, models.StatusDelivered, s.view.Messages[0].Status)

	require.ErrorIs(t, s.applyStatus("nope", models.StatusRead), ErrUnknownMessage)
}
