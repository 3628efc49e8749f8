package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"noticeboard/internal/apperr"
	"noticeboard/internal/metrics"
	"noticeboard/internal/ws"
)

// respondError writes {"error", "kind"} with the status for err's kind.
// The full cause chain is attached to the gin context for the request log.
func respondError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	c.Error(err)
	c.JSON(apperr.HTTPStatus(kind), gin.H{"error": apperr.Message(err), "kind": kind})
}

// writeContext bounds a durable write. It is detached from the request so
// a client hanging up does not abort a write halfway through the response.
func writeContext(c *gin.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(c.Request.Context()), timeout)
}

const publishTimeout = 2 * time.Second

// Notifier tells viewers the playlist changed. Failures are logged and not
// returned since the write already succeeded.
type Notifier struct {
	publisher ws.Publisher
	logger    *slog.Logger
	timeout   time.Duration
}

func NewNotifier(publisher ws.Publisher, logger *slog.Logger) *Notifier {
	return &Notifier{publisher: publisher, logger: logger, timeout: publishTimeout}
}

func (n *Notifier) ContentUpdated(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
	defer cancel()

	err := n.publisher.Publish(ctx, ws.Event{Type: ws.ContentUpdated})
	metrics.Notifications.WithLabelValues(metrics.Result(err)).Inc()
	if err != nil {
		n.logger.Warn("content update notification failed", slog.String("error", err.Error()))
	}
}
