package repo

import (
	"context"
	"fmt"
)

// MessageStore is the append-only chat log.
type MessageStore struct {
	repo *Repository
}

// InsertMessage appends one message to the log.
func (s *MessageStore) InsertMessage(ctx context.Context, rec MessageRecord) error {
	_, err := s.repo.pool.Exec(ctx, `
		INSERT INTO messages (conversation_id, direction, type, content)
		VALUES ($1, $2, $3, $4)`,
		rec.ConversationID, rec.Direction, rec.Type, rec.Content)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}
