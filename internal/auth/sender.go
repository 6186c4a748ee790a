package auth

import (
	"context"

	"go.uber.org/zap"
)

// LogSender is the delivery placeholder used until a mail channel exists:
// it writes the issued code to the log. The code itself is only logged
// when LogCodes is set, which is meant for local development.
type LogSender struct {
	Logger   *zap.SugaredLogger
	LogCodes bool
}

func (s LogSender) Send(_ context.Context, otp OtpIssued) error {
	code := "******"
	if s.LogCodes {
		code = otp.Code
	}
	s.Logger.Infow("otp issued", "email", otp.Email, "code", code, "token", otp.Token, "expires_at", otp.ExpiresAt)
	return nil
}
