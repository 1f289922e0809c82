package notification

import (
	"github.com/doseline/doseline/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("notification",
	fx.Provide(NewFromConfig),
	fx.Provide(NewDispatcher),
)

func NewFromConfig(cfg config.Config) Sender {
	switch cfg.NotificationDriver {
	case "smtp":
		return NewSMTP(SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})
	default:
		return NoopSender{}
	}
}
