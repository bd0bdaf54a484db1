package activity

import (
	"context"

	"github.com/uptrace/bun"

	"ms-registration/internal/models"
)

// BunStore persists activity rows through bun.
type BunStore struct {
	Bun *bun.DB
}

func (s *BunStore) InsertActivity(ctx context.Context, record models.UserActivity) error {
	_, err := s.Bun.NewInsert().Model(&record).Exec(ctx)
	return err
}
