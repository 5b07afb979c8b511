package hospital

import (
	"context"
)

type Repository interface {
	Create(ctx context.Context, h *Hospital) error
	GetByID(ctx context.Context, hospitalID string) (*Hospital, error)
	List(ctx context.Context, limit, offset int) ([]*Hospital, int, error)
	Update(ctx context.Context, h *Hospital) error
	UpdateStatus(ctx context.Context, hospitalID, status string) (bool, error)
	ListActive(ctx context.Context) ([]*Hospital, error)
}
