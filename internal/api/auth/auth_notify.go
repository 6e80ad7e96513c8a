package auth

import (
	"context"
	"log/slog"
)

// Notifier delivers password-reset tokens out of band. The core never
// delivers mail itself; production wires a real sender here.
type Notifier interface {
	SendPasswordReset(ctx context.Context, email, token string) error
}

// LogNotifier is the development stand-in: it logs that a token was handed
// off without printing the token itself.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) SendPasswordReset(ctx context.Context, email, token string) error {
	n.logger.InfoContext(ctx, "Password reset token issued",
		slog.String("email", email),
		slog.Int("token_length", len(token)),
	)
	return nil
}
