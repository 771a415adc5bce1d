package local

import (
	"context"

	"github.com/dmitrijs2005/wardrobe/internal/logging"
)

type Purpose string

const (
	PurposeEmailVerification Purpose = "email_verification"
	PurposePasswordReset     Purpose = "password_reset"
)

// CodeSender delivers one-time codes to the account owner.
type CodeSender interface {
	SendCode(ctx context.Context, email string, purpose Purpose, code string) error
}

// LogSender writes codes to the log. It is the default for local setups
// without a mail relay.
type LogSender struct {
	log logging.Logger
}

func NewLogSender(log logging.Logger) *LogSender {
	return &LogSender{log: log.With("module", "codes")}
}

func (s *LogSender) SendCode(ctx context.Context, email string, purpose Purpose, code string) error {
	s.log.Info(ctx, "verification code issued", "email", email, "purpose", string(purpose), "code", code)
	return nil
}
