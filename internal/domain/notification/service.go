package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/organlink/organlink/internal/platform/cache"
)

// ErrNotFound is returned when a notification does not exist or belongs to
// another hospital.
var ErrNotFound = errors.New("notification not found")

const unreadCountTTL = 30 * time.Second

type Service struct {
	repo  Repository
	cache *cache.Client
}

func NewService(repo Repository, cacheClient *cache.Client) *Service {
	return &Service{repo: repo, cache: cacheClient}
}

func unreadKey(hospitalID string) string {
	return "notif:unread:" + hospitalID
}

// Create validates and stores a notification, serializing the payload into
// the metadata column.
func (s *Service) Create(ctx context.Context, hospitalID, kind, title, message, relatedID string, payload interface{}) (*Notification, error) {
	if hospitalID == "" {
		return nil, fmt.Errorf("hospital_id is required")
	}
	if !validTypes[kind] {
		return nil, fmt.Errorf("invalid notification type: %s", kind)
	}
	if title == "" {
		return nil, fmt.Errorf("title is required")
	}

	n := &Notification{
		NotificationID: "NOTIF_" + strings.ToUpper(uuid.NewString()[:12]),
		HospitalID:     hospitalID,
		Type:           kind,
		Title:          title,
		Message:        message,
	}
	if relatedID != "" {
		n.RelatedID = &relatedID
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode notification payload: %w", err)
		}
		n.Metadata = raw
	}

	if err := s.repo.Create(ctx, n); err != nil {
		return nil, err
	}
	s.cache.Delete(ctx, unreadKey(hospitalID))
	return n, nil
}

func (s *Service) Get(ctx context.Context, notificationID, hospitalID string) (*Notification, error) {
	n, err := s.repo.GetByID(ctx, notificationID)
	if err != nil {
		return nil, err
	}
	if n.HospitalID != hospitalID {
		return nil, ErrNotFound
	}
	return n, nil
}

func (s *Service) List(ctx context.Context, hospitalID string, unreadOnly bool, limit, offset int) ([]*Notification, int, error) {
	return s.repo.ListByHospital(ctx, hospitalID, unreadOnly, limit, offset)
}

// UnreadCount serves the badge counter. The count is cached briefly since
// dashboards poll it aggressively.
func (s *Service) UnreadCount(ctx context.Context, hospitalID string) (int, error) {
	if n, ok := s.cache.GetInt(ctx, unreadKey(hospitalID)); ok {
		return n, nil
	}
	n, err := s.repo.UnreadCount(ctx, hospitalID)
	if err != nil {
		return 0, err
	}
	s.cache.SetInt(ctx, unreadKey(hospitalID), n, unreadCountTTL)
	return n, nil
}

func (s *Service) MarkRead(ctx context.Context, notificationID, hospitalID string) error {
	ok, err := s.repo.MarkRead(ctx, notificationID, hospitalID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	s.cache.Delete(ctx, unreadKey(hospitalID))
	return nil
}

func (s *Service) MarkAllRead(ctx context.Context, hospitalID string) (int, error) {
	n, err := s.repo.MarkAllRead(ctx, hospitalID)
	if err != nil {
		return 0, err
	}
	s.cache.Delete(ctx, unreadKey(hospitalID))
	return n, nil
}

func (s *Service) MarkReadByRelated(ctx context.Context, relatedID, hospitalID string) error {
	if err := s.repo.MarkReadByRelated(ctx, relatedID, hospitalID); err != nil {
		return err
	}
	s.cache.Delete(ctx, unreadKey(hospitalID))
	return nil
}

func (s *Service) Delete(ctx context.Context, notificationID, hospitalID string) error {
	ok, err := s.repo.Delete(ctx, notificationID, hospitalID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	s.cache.Delete(ctx, unreadKey(hospitalID))
	return nil
}

// Notify adapts Create to the matching engine's delivery port.
func (s *Service) Notify(ctx context.Context, hospitalID, kind, title, message, relatedID string, payload interface{}) error {
	_, err := s.Create(ctx, hospitalID, kind, title, message, relatedID, payload)
	return err
}
