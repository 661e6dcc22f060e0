package telemetry_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-sync/internal/mocks"
	"chat-sync/internal/telemetry"
)

func TestEmitPublishesEnvelope(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	publisher.On("Publish", mock.Anything, "audit.chat_sync", mock.Anything).Return(nil).Once()

	emitter := telemetry.NewAuditEmitter(publisher, "audit.chat_sync", "chat-sync", "test", zerolog.Nop())
	userID := "u1"
	emitter.Emit(context.Background(), "INFO", "sync started", "req-1", &userID)

	events := publisher.Published("audit.chat_sync")
	require.Len(t, events, 1)
	envelope, ok := events[0].(telemetry.AuditEnvelope)
	require.True(t, ok)
	assert.Equal(t, 1, envelope.SchemaVersion)
	assert.Equal(t, "audit_log", envelope.EventType)
	assert.Equal(t, "chat-sync", envelope.Service)
	assert.Equal(t, "req-1", envelope.RequestID)
	require.NotNil(t, envelope.UserID)
	assert.Equal(t, "u1", *envelope.UserID)
	assert.Equal(t, "sync started", envelope.Text)
	publisher.AssertExpectations(t)
}

func TestEmitSwallowsPublishFailure(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	publisher.On("Publish", mock.Anything, "audit.chat_sync", mock.Anything).Return(assert.AnError).Once()

	emitter := telemetry.NewAuditEmitter(publisher, "audit.chat_sync", "chat-sync", "test", zerolog.Nop())
	emitter.Emit(context.Background(), "ERROR", "boom", "req-2", nil)

	publisher.AssertExpectations(t)
}

func TestEmitNilEmitterIsSafe(t *testing.T) {
	var emitter *telemetry.AuditEmitter
	emitter.Emit(context.Background(), "INFO", "noop", "req-3", nil)
}
