package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// PublisherMock is a mock implementation of the telemetry.Publisher and
// rabbitmq.Publisher interfaces.
type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) Publish(ctx context.Context, routingKey string, event any) error {
	args := m.Called(ctx, routingKey, event)
	return args.Error(0)
}

func (m *PublisherMock) Close() error {
	args := m.Called()
	return args.Error(0)
}

// Published returns the events captured for a routing key, in order.
func (m *PublisherMock) Published(routingKey string) []any {
	var out []any
	for _, call := range m.Calls {
		if call.Method == "Publish" && call.Arguments.String(1) == routingKey {
			out = append(out, call.Arguments.Get(2))
		}
	}
	return out
}
