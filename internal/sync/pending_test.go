package sync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-sync/internal/models"
)

func TestResolvePrefersClientTag(t *testing.T) {
	reg := NewPendingRegistry(30 * time.Second)
	reg.RegisterPending("tmp_1", Fingerprint{
		ConversationID: "conv1",
		SenderID:       "u1",
		Content:        "hi",
		CreatedAt:      time.Now(),
	})

	echo := models.Message{
		ID:             "srv_1",
		ConversationID: "conv2", // fingerprint would not match
		SenderID:       "u9",
		Content:        "other",
		Metadata:       []byte(`{"client_tag":"tmp_1"}`),
	}
	assert.Equal(t, "tmp_1", reg.Resolve(echo))
	assert.True(t, reg.IsSameMessage("tmp_1", echo))
}

func TestResolveFuzzyMatchWithinWindow(t *testing.T) {
	reg := NewPendingRegistry(30 * time.Second)
	sentAt := time.Now()
	reg.RegisterPending("tmp_1", Fingerprint{
		ConversationID: "conv1",
		SenderID:       "u1",
		Content:        "hi",
		CreatedAt:      sentAt,
	})

	echo := models.Message{
		ID:             "srv_1",
		ConversationID: "conv1",
		SenderID:       "u1",
		Content:        "hi",
		CreatedAt:      sentAt.Add(5 * time.Second),
	}
	assert.Equal(t, "tmp_1", reg.Resolve(echo))
}

func TestResolveRejectsOutsideWindow(t *testing.T) {
	reg := NewPendingRegistry(30 * time.Second)
	sentAt := time.Now()
	reg.RegisterPending("tmp_1", Fingerprint{
		ConversationID: "conv1",
		SenderID:       "u1",
		Content:        "hi",
		CreatedAt:      sentAt,
	})

	late := models.Message{
		ID:             "srv_1",
		ConversationID: "conv1",
		SenderID:       "u1",
		Content:        "hi",
		CreatedAt:      sentAt.Add(31 * time.Second),
	}
	assert.Empty(t, reg.Resolve(late))
}

func TestResolveRequiresExactIdentityAndContent(t *testing.T) {
	reg := NewPendingRegistry(30 * time.Second)
	now := time.Now()
	reg.RegisterPending("tmp_1", Fingerprint{
		ConversationID: "conv1",
		SenderID:       "u1",
		Content:        "hi",
		CreatedAt:      now,
	})

	for _, candidate := range []models.Message{
		{ConversationID: "conv2", SenderID: "u1", Content: "hi", CreatedAt: now},
		{ConversationID: "conv1", SenderID: "u2", Content: "hi", CreatedAt: now},
		{ConversationID: "conv1", SenderID: "u1", Content: "hi there", CreatedAt: now},
	} {
		assert.Empty(t, reg.Resolve(candidate))
	}
}

func TestRemoveDropsEntry(t *testing.T) {
	reg := NewPendingRegistry(30 * time.Second)
	reg.RegisterPending("tmp_1", Fingerprint{ConversationID: "conv1", SenderID: "u1", Content: "hi", CreatedAt: time.Now()})
	require.Equal(t, 1, reg.Len())

	reg.Remove("tmp_1")
	assert.Equal(t, 0, reg.Len())
	assert.Empty(t, reg.Resolve(models.Message{Metadata: []byte(`{"client_tag":"tmp_1"}`)}))
}

func TestClientTagIgnoresMalformedMetadata(t *testing.T) {
	assert.Empty(t, clientTag(models.Message{Metadata: []byte(`{`)}))
	assert.Empty(t, clientTag(models.Message{}))
}
