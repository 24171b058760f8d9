package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TaskStore persists tasks and follow-ups.
type TaskStore struct {
	repo *Repository
}

// Create inserts an open task.
func (s *TaskStore) Create(ctx context.Context, in NewTask) (*Task, error) {
	defer s.repo.observe("task_create", time.Now())

	var t Task
	err := s.repo.pool.QueryRow(ctx, `
		INSERT INTO tasks (id, title, assignee, due_date, follow_up, status)
		VALUES ($1, $2, $3, $4, $5, 'open')
		RETURNING id::text, title, assignee, due_date, follow_up, status, created_at`,
		uuid.NewString(), in.Title, in.Assignee, in.DueDate, in.FollowUp,
	).Scan(&t.ID, &t.Title, &t.Assignee, &t.DueDate, &t.FollowUp, &t.Status, &t.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	return &t, nil
}
