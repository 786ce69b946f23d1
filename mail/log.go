package mail

import (
	"context"

	"github.com/MrEthical07/wanderauth/internal/logging"
)

// LogDispatcher writes codes to the logger instead of sending mail. It is
// meant for local development.
type LogDispatcher struct {
	log logging.Logger
}

func NewLogDispatcher(log logging.Logger) *LogDispatcher {
	if log == nil {
		log = logging.Discard()
	}
	return &LogDispatcher{log: log}
}

func (d *LogDispatcher) SendCode(ctx context.Context, target, code string, purpose Purpose) error {
	if err := checkRecipient(target); err != nil {
		return err
	}
	if !purpose.Valid() {
		return ErrUnknownPurpose
	}
	d.log.Info(ctx, "verification code issued", "target", target, "purpose", string(purpose), "code", code)
	return nil
}
