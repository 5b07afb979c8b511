package notification

import (
	"context"
)

type Repository interface {
	Create(ctx context.Context, n *Notification) error
	GetByID(ctx context.Context, notificationID string) (*Notification, error)
	ListByHospital(ctx context.Context, hospitalID string, unreadOnly bool, limit, offset int) ([]*Notification, int, error)
	UnreadCount(ctx context.Context, hospitalID string) (int, error)
	MarkRead(ctx context.Context, notificationID, hospitalID string) (bool, error)
	MarkAllRead(ctx context.Context, hospitalID string) (int, error)
	MarkReadByRelated(ctx context.Context, relatedID, hospitalID string) error
	Delete(ctx context.Context, notificationID, hospitalID string) (bool, error)
}
