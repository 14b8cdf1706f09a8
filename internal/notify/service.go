package notify

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const listLimit = 50

// Publisher forwards stored notifications to an external fan-out channel.
type Publisher interface {
	Publish(ctx context.Context, n Notification) error
}

type Service struct {
	DB        *gorm.DB
	Publisher Publisher // optional
	Log       logrus.FieldLogger
}

type Input struct {
	UserID   string
	FamilyID *string
	Type     Type
	Title    string
	Message  string
}

// Create stores a notification and publishes it. Publish failures are logged only.
func (s *Service) Create(ctx context.Context, in Input) (*Notification, error) {
	ns, err := s.CreateMany(ctx, []Input{in})
	if err != nil {
		return nil, err
	}
	return &ns[0], nil
}

func (s *Service) CreateMany(ctx context.Context, ins []Input) ([]Notification, error) {
	if len(ins) == 0 {
		return nil, nil
	}
	ns := make([]Notification, 0, len(ins))
	for _, in := range ins {
		typ := in.Type
		if typ == "" {
			typ = TypeGeneral
		}
		ns = append(ns, Notification{
			UserID:   in.UserID,
			FamilyID: in.FamilyID,
			Type:     typ,
			Title:    in.Title,
			Message:  in.Message,
		})
	}
	if err := s.DB.WithContext(ctx).Create(&ns).Error; err != nil {
		return nil, fmt.Errorf("create notifications: %w", err)
	}

	if s.Publisher != nil {
		for _, n := range ns {
			if err := s.Publisher.Publish(ctx, n); err != nil && s.Log != nil {
				s.Log.WithError(err).WithFields(logrus.Fields{
					"notification_id": n.ID,
					"user_id":         n.UserID,
				}).Warn("publish notification failed")
			}
		}
	}
	return ns, nil
}

// List returns the most recent notifications for a user, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]Notification, error) {
	out := []Notification{}
	err := s.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Limit(listLimit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return out, nil
}

func (s *Service) MarkRead(ctx context.Context, userID, id string) error {
	return s.DB.WithContext(ctx).Model(&Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("read", true).Error
}

func (s *Service) MarkAllRead(ctx context.Context, userID string) error {
	return s.DB.WithContext(ctx).Model(&Notification{}).
		Where("user_id = ? AND read = ?", userID, false).
		Update("read", true).Error
}
