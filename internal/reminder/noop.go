package reminder

import (
	"context"
	"log/slog"
)

// LogNotifier stands in for a chat transport when no bot token is
// configured. Messages are logged instead of delivered.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) SendMessage(ctx context.Context, chatID, text string) error {
	n.Logger.Info("reminder not delivered, no bot token", "chat_id", chatID, "text", text)
	return nil
}
