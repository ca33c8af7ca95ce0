package webhook

import (
	"context"
	"errors"
	"testing"

	"canvas-gateway/internal/common/logging"
	"canvas-gateway/internal/signature"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	testSecret = []byte("app-secret")
	testBody   = []byte(`{"object":"page","entry":[{"id":"1234","time":1700000000,"changed_fields":["feed"]}]}`)
)

type mockHandler struct {
	mock.Mock
}

func (m *mockHandler) HandleEvent(ctx context.Context, subscription string, event *Event) error {
	args := m.Called(ctx, subscription, event)
	return args.Error(0)
}

func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	verifier, err := signature.NewVerifier(testSecret, logging.NewNopLogger())
	require.NoError(t, err)
	return NewDispatcher(verifier, logging.NewNopLogger())
}

func TestDispatcher_ReceiveEvent(t *testing.T) {
	d := newTestDispatcher(t)

	h := &mockHandler{}
	h.On("HandleEvent", mock.Anything, "page-updates", mock.MatchedBy(func(e *Event) bool {
		return e.Object == "page" && len(e.Entries) == 1 && e.Entries[0].Subject() == 1234
	})).Return(nil).Once()
	d.Register(h)

	d.ReceiveEvent(context.Background(), "page-updates", testBody, signature.SignSHA1(testBody, testSecret))

	h.AssertExpectations(t)
}

func TestDispatcher_RegistrationOrder(t *testing.T) {
	d := newTestDispatcher(t)

	var calls []string
	for _, name := range []string{"first", "second", "third"} {
		name := name
		d.Register(HandlerFunc(func(ctx context.Context, subscription string, event *Event) error {
			calls = append(calls, name)
			return nil
		}))
	}
	assert.Equal(t, 3, d.Handlers())

	d.ReceiveEvent(context.Background(), "page-updates", testBody, signature.SignSHA256(testBody, testSecret))

	assert.Equal(t, []string{"first", "second", "third"}, calls)
}

func TestDispatcher_HandlerFailureIsolated(t *testing.T) {
	d := newTestDispatcher(t)

	var calls []string
	d.Register(HandlerFunc(func(ctx context.Context, subscription string, event *Event) error {
		calls = append(calls, "erroring")
		return errors.New("downstream unavailable")
	}))
	d.Register(HandlerFunc(func(ctx context.Context, subscription string, event *Event) error {
		calls = append(calls, "panicking")
		panic("boom")
	}))
	d.Register(HandlerFunc(func(ctx context.Context, subscription string, event *Event) error {
		calls = append(calls, "healthy")
		return nil
	}))

	assert.NotPanics(t, func() {
		d.ReceiveEvent(context.Background(), "page-updates", testBody, signature.SignSHA1(testBody, testSecret))
	})
	assert.Equal(t, []string{"erroring", "panicking", "healthy"}, calls)
}

func TestDispatcher_RejectedDeliveries(t *testing.T) {
	notJSON := []byte("object=page")

	tests := []struct {
		name   string
		body   []byte
		header string
	}{
		{"missing signature", testBody, ""},
		{"wrong secret", testBody, signature.SignSHA1(testBody, []byte("other"))},
		{"unknown prefix", testBody, "md5=abc"},
		{"tampered body", append([]byte(" "), testBody...), signature.SignSHA1(testBody, testSecret)},
		{"signed but unparseable", notJSON, signature.SignSHA1(notJSON, testSecret)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDispatcher(t)
			h := &mockHandler{}
			d.Register(h)

			d.ReceiveEvent(context.Background(), "page-updates", tt.body, tt.header)

			h.AssertNotCalled(t, "HandleEvent", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestLoggingHandler(t *testing.T) {
	h := NewLoggingHandler(logging.NewNopLogger())
	assert.Equal(t, "log", h.Name())

	event, err := ParseEvent(testBody)
	require.NoError(t, err)
	assert.NoError(t, h.HandleEvent(context.Background(), "page-updates", event))
	assert.Equal(t, "log", handlerName(h))
}
