package repository

import (
	"errors"
	"time"

	"ema-backend/internal/calendar/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// gormEventRepository implements EventRepository using GORM
type gormEventRepository struct {
	db *gorm.DB
}

// NewGormEventRepository creates a new GORM-based EventRepository
func NewGormEventRepository(db *gorm.DB) EventRepository {
	return &gormEventRepository{db: db}
}

func (r *gormEventRepository) Create(event *domain.CalendarEvent) (bool, error) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	event.RefreshIdentity()
	now := time.Now()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now
	}
	event.UpdatedAt = now

	res := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account_id"}, {Name: "identity_key"}},
		DoNothing: true,
	}).Create(event)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *gormEventRepository) FindByID(id string) (*domain.CalendarEvent, error) {
	var event domain.CalendarEvent
	err := r.db.Where("id = ?", id).First(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &event, nil
}

func (r *gormEventRepository) FindByIdentity(accountID, identityKey string) (*domain.CalendarEvent, error) {
	var event domain.CalendarEvent
	err := r.db.Where("account_id = ? AND identity_key = ?", accountID, identityKey).First(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &event, nil
}

func (r *gormEventRepository) FindByAccount(accountID string) ([]*domain.CalendarEvent, error) {
	var events []*domain.CalendarEvent
	err := r.db.Where("account_id = ?", accountID).
		Order("event_date ASC, created_at ASC").
		Find(&events).Error
	return events, err
}

func (r *gormEventRepository) SourceEmailIDs(accountID string) (map[string]bool, error) {
	var ids []string
	err := r.db.Model(&domain.CalendarEvent{}).
		Where("account_id = ? AND source_email_id IS NOT NULL", accountID).
		Distinct().Pluck("source_email_id", &ids).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}

func (r *gormEventRepository) SetAdded(id string, added bool, remoteID string) error {
	return r.db.Model(&domain.CalendarEvent{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"added":      added,
			"remote_id":  remoteID,
			"updated_at": time.Now(),
		}).Error
}

func (r *gormEventRepository) Delete(id string) error {
	return r.db.Delete(&domain.CalendarEvent{}, "id = ?", id).Error
}

func (r *gormEventRepository) DeleteBySources(accountID string, sourceIDs []string) (int64, error) {
	if len(sourceIDs) == 0 {
		return 0, nil
	}
	res := r.db.Where("account_id = ? AND source_email_id IN ? AND added = ?", accountID, sourceIDs, false).
		Delete(&domain.CalendarEvent{})
	return res.RowsAffected, res.Error
}

func (r *gormEventRepository) DeleteCreatedBefore(cutoff time.Time) (int64, error) {
	res := r.db.Where("created_at < ? AND added = ?", cutoff, false).Delete(&domain.CalendarEvent{})
	return res.RowsAffected, res.Error
}

func (r *gormEventRepository) AccountIDs() ([]string, error) {
	var ids []string
	err := r.db.Model(&domain.CalendarEvent{}).Distinct().Pluck("account_id", &ids).Error
	return ids, err
}
