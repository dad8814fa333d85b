package notify

import (
	"context"

	"github.com/sirupsen/logrus"
)

// LogGateway writes pushes to the log instead of delivering them. Used in
// development and when no Telegram credentials are configured.
type LogGateway struct {
	logger *logrus.Logger
}

// NewLogGateway constructs a log-only gateway.
func NewLogGateway(logger *logrus.Logger) *LogGateway {
	return &LogGateway{logger: logger}
}

// SendPush logs the push and reports success.
func (g *LogGateway) SendPush(_ context.Context, recipient RecipientClass, title, message string) error {
	g.logger.Infof("Push to %s: %s / %s", recipient, title, message)
	return nil
}
