package sms

import (
	"context"
	"errors"

	"github.com/dolphin-iot/dolphin-core/internal/infrastructure/config"
	"github.com/dolphin-iot/dolphin-core/internal/infrastructure/logging"
)

// Sender delivers one text message to one recipient. Implementations must
// be safe for concurrent use; the alert workers call Send from multiple
// goroutines.
type Sender interface {
	Send(ctx context.Context, to, message string) error
}

// ErrUnknownProvider is returned by NewSender for an unrecognised
// provider name.
var ErrUnknownProvider = errors.New("sms: unknown provider")

// NewSender builds the configured provider client.
func NewSender(cfg config.SMSConfig, logger *logging.Logger) (Sender, error) {
	switch cfg.Provider {
	case "ncp":
		return NewNCPClient(cfg.NCP, logger), nil
	case "biz":
		return NewBizClient(cfg.Biz, logger), nil
	default:
		return nil, ErrUnknownProvider
	}
}
