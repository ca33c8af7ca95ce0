// Package webhook receives the platform's real-time update deliveries.
//
// Deliveries are verified against the X-Hub-Signature header before the body
// is parsed, then fanned out to every registered Handler in registration
// order. The subscription handshake is answered by VerifySubscription.
package webhook

import (
	"context"
	"fmt"
	"sync"

	"canvas-gateway/internal/common/logging"
)

// Handler receives verified events.
type Handler interface {
	HandleEvent(ctx context.Context, subscription string, event *Event) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, subscription string, event *Event) error

// HandleEvent calls f.
func (f HandlerFunc) HandleEvent(ctx context.Context, subscription string, event *Event) error {
	return f(ctx, subscription, event)
}

// SignatureVerifier checks a signature header against the raw body.
type SignatureVerifier interface {
	Verify(rawBody []byte, header string) error
}

// Dispatcher verifies deliveries and fans them out to handlers.
type Dispatcher struct {
	verifier SignatureVerifier
	logger   logging.Logger

	mu       sync.RWMutex
	handlers []Handler
}

// NewDispatcher creates a dispatcher that verifies deliveries with verifier
func NewDispatcher(verifier SignatureVerifier, logger logging.Logger) *Dispatcher {
	return &Dispatcher{
		verifier: verifier,
		logger:   logging.OrGlobal(logger),
	}
}

// Register appends h to the handler list.
func (d *Dispatcher) Register(h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers = append(d.handlers, h)
}

// Handlers returns the number of registered handlers.
func (d *Dispatcher) Handlers() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.handlers)
}

// ReceiveEvent verifies rawBody against signatureHeader, parses it and
// invokes every handler. Verification and parse failures are logged and
// otherwise silent: the platform gets no detail back.
func (d *Dispatcher) ReceiveEvent(ctx context.Context, subscription string, rawBody []byte, signatureHeader string) {
	if logging.SubscriptionFromContext(ctx) == "" {
		ctx = logging.ContextWithSubscription(ctx, subscription)
	}
	logger := d.logger.WithContext(ctx)

	if err := d.verifier.Verify(rawBody, signatureHeader); err != nil {
		logger.Warn("Dropping webhook delivery with invalid signature", logging.Err(err))
		return
	}

	event, err := ParseEvent(rawBody)
	if err != nil {
		logger.Warn("Dropping unparseable webhook delivery", logging.Err(err))
		return
	}

	d.mu.RLock()
	handlers := make([]Handler, len(d.handlers))
	copy(handlers, d.handlers)
	d.mu.RUnlock()

	logger.Info("Webhook event received",
		logging.String("object", event.Object),
		logging.Int("entries", len(event.Entries)),
		logging.Int("handlers", len(handlers)),
	)

	for i, h := range handlers {
		if err := d.invoke(ctx, h, subscription, event); err != nil {
			logger.Error("Webhook handler failed", err,
				logging.Int("handler", i),
				logging.String("handler_name", handlerName(h)),
			)
		}
	}
}

func (d *Dispatcher) invoke(ctx context.Context, h Handler, subscription string, event *Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return h.HandleEvent(ctx, subscription, event)
}

func handlerName(h Handler) string {
	if named, ok := h.(interface{ Name() string }); ok {
		return named.Name()
	}
	return fmt.Sprintf("%T", h)
}

// LoggingHandler logs every event it receives.
type LoggingHandler struct {
	logger logging.Logger
}

// NewLoggingHandler creates a handler that only logs
func NewLoggingHandler(logger logging.Logger) *LoggingHandler {
	return &LoggingHandler{logger: logging.OrGlobal(logger)}
}

// Name identifies the handler in logs.
func (h *LoggingHandler) Name() string { return "log" }

// HandleEvent logs each entry of event.
func (h *LoggingHandler) HandleEvent(ctx context.Context, subscription string, event *Event) error {
	logger := h.logger.WithContext(ctx)
	for _, entry := range event.Entries {
		logger.Debug("Subject changed",
			logging.String("subscription", subscription),
			logging.String("object", event.Object),
			logging.Int64("subject", entry.Subject()),
			logging.Int64("time", entry.Time),
			logging.Strings("changed_fields", entry.ChangedFields),
		)
	}
	return nil
}
