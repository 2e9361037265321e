// Package senders provides OutreachSender implementations. Concrete
// email/SMS transports are integrations supplied by the deployment; the
// log sender here records deliveries without sending anything and is the
// default for local runs and the tick command.
package senders

import (
	"context"

	"github.com/leadforge/leadforge/pkg/engine"
	"github.com/leadforge/leadforge/pkg/telemetry"
)

// LogSender writes every send to the log instead of delivering it.
type LogSender struct {
	logger *telemetry.Logger
}

// NewLogSender creates a log-only sender.
func NewLogSender(logger *telemetry.Logger) *LogSender {
	return &LogSender{logger: logger.NewComponentLogger("log-sender")}
}

// Send implements engine.OutreachSender.
func (s *LogSender) Send(_ context.Context, channel engine.Channel, recipient, content, subject string) error {
	s.logger.WithFields(map[string]interface{}{
		"channel":   string(channel),
		"recipient": recipient,
		"subject":   subject,
		"bytes":     len(content),
	}).Info("outreach send (log only)")
	return nil
}
