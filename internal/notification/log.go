package notification

import (
	"context"

	"go.uber.org/zap"

	"github.com/fuomag9/checkpulse/internal/config"
)

// LogProvider writes alerts to the process logger instead of delivering them
type LogProvider struct{}

func init() {
	RegisterProvider(&LogProvider{})
}

func (l *LogProvider) Name() string {
	return "log"
}

func (l *LogProvider) Send(ctx context.Context, cfg *config.NotificationConfig, msg *Message) error {
	zap.L().Named("notification").Info("Alert",
		zap.String("recipient", msg.Recipient),
		zap.String("message", msg.Body))
	return nil
}

func (l *LogProvider) Validate(cfg *config.NotificationConfig) error {
	return nil
}
