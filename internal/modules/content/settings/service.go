package settings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/rationable/api/internal/models"
	"github.com/rationable/api/internal/pkg/redis"
)

const defaultLanguage = "en"

var (
	ErrRealtimeDisabled = errors.New("real-time search is disabled in your settings")
	ErrDailyLimit       = errors.New("daily real-time search limit reached")
)

type UpdateSettingsDTO struct {
	RealTimeSearch *bool   `json:"real_time_search"`
	Language       *string `json:"language"`
}

// Usage is the caller's real-time search allowance for the current UTC day.
type Usage struct {
	Used      int64 `json:"used"`
	Limit     int64 `json:"limit"`
	Remaining int64 `json:"remaining"`
}

type Service struct {
	db    *gorm.DB
	rc    *redis.Client
	limit int64
	now   func() time.Time
}

func NewService(db *gorm.DB, rc *redis.Client, dailyLimit int) *Service {
	return &Service{db: db, rc: rc, limit: int64(dailyLimit), now: time.Now}
}

// Get returns the stored settings or the defaults for a user who never saved any.
func (s *Service) Get(ctx context.Context, userID string) (*models.UserSettingsModel, error) {
	var m models.UserSettingsModel
	err := s.db.WithContext(ctx).First(&m, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.UserSettingsModel{UserID: userID, Language: defaultLanguage}, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Service) Update(ctx context.Context, userID string, dto *UpdateSettingsDTO) (*models.UserSettingsModel, error) {
	m, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if dto.RealTimeSearch != nil {
		m.RealTimeSearch = *dto.RealTimeSearch
	}
	if dto.Language != nil {
		if lang := strings.TrimSpace(*dto.Language); lang != "" {
			m.Language = lang
		}
	}
	return m, s.db.WithContext(ctx).Save(m).Error
}

func (s *Service) usageKey(userID string) string {
	return fmt.Sprintf("rationable:realtime:%s:%s", userID, s.now().UTC().Format("20060102"))
}

func (s *Service) usage(used int64) Usage {
	u := Usage{Used: used, Limit: s.limit}
	if s.limit > 0 {
		u.Remaining = max(s.limit-used, 0)
	}
	return u
}

// Usage reports today's real-time search count.
func (s *Service) Usage(ctx context.Context, userID string) (Usage, error) {
	if s.rc == nil {
		return s.usage(0), nil
	}
	n, err := s.rc.Counter(ctx, s.usageKey(userID))
	if err != nil {
		return Usage{}, err
	}
	return s.usage(n), nil
}

// ConsumeRealtime counts one real-time search for userID. It fails when the user has not
// enabled real-time search or has used up today's allowance. A non-positive limit means
// unlimited.
func (s *Service) ConsumeRealtime(ctx context.Context, userID string) (Usage, error) {
	m, err := s.Get(ctx, userID)
	if err != nil {
		return Usage{}, err
	}
	if !m.RealTimeSearch {
		return Usage{}, ErrRealtimeDisabled
	}
	if s.rc == nil {
		return s.usage(0), nil
	}
	n, err := s.rc.IncrWithin(ctx, s.usageKey(userID), 25*time.Hour)
	if err != nil {
		return Usage{}, err
	}
	if s.limit > 0 && n > s.limit {
		return s.usage(s.limit), ErrDailyLimit
	}
	return s.usage(n), nil
}
