package repository

import (
	"errors"
	"time"

	"ema-backend/internal/agent/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// HistoryRepository stores conversation turns per session.
type HistoryRepository interface {
	Append(turn *domain.ChatTurn) error
	// Recent returns up to limit turns, newest first.
	Recent(sessionID string, limit int) ([]domain.ChatTurn, error)
	// Trim keeps only the newest keep turns of the session.
	Trim(sessionID string, keep int) error
	Clear(sessionID string) error
	DeleteCreatedBefore(cutoff time.Time) (int64, error)
}

// SessionRepository stores dialogue state per session.
type SessionRepository interface {
	// Get returns nil when the session has no stored state.
	Get(sessionID string) (*domain.SessionState, error)
	Save(state *domain.SessionState) error
	Delete(sessionID string) error
}

type historyRepository struct {
	db *gorm.DB
}

func NewHistoryRepository(db *gorm.DB) HistoryRepository {
	return &historyRepository{db: db}
}

func (r *historyRepository) Append(turn *domain.ChatTurn) error {
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}
	return r.db.Create(turn).Error
}

func (r *historyRepository) Recent(sessionID string, limit int) ([]domain.ChatTurn, error) {
	var turns []domain.ChatTurn
	err := r.db.Where("session_id = ?", sessionID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&turns).Error
	return turns, err
}

func (r *historyRepository) Trim(sessionID string, keep int) error {
	var keepIDs []uint
	err := r.db.Model(&domain.ChatTurn{}).
		Where("session_id = ?", sessionID).
		Order("created_at DESC, id DESC").
		Limit(keep).
		Pluck("id", &keepIDs).Error
	if err != nil {
		return err
	}
	q := r.db.Where("session_id = ?", sessionID)
	if len(keepIDs) > 0 {
		q = q.Where("id NOT IN ?", keepIDs)
	}
	return q.Delete(&domain.ChatTurn{}).Error
}

func (r *historyRepository) Clear(sessionID string) error {
	return r.db.Where("session_id = ?", sessionID).Delete(&domain.ChatTurn{}).Error
}

func (r *historyRepository) DeleteCreatedBefore(cutoff time.Time) (int64, error) {
	res := r.db.Where("created_at < ?", cutoff).Delete(&domain.ChatTurn{})
	return res.RowsAffected, res.Error
}

type sessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) Get(sessionID string) (*domain.SessionState, error) {
	var state domain.SessionState
	err := r.db.Where("session_id = ?", sessionID).First(&state).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &state, nil
}

func (r *sessionRepository) Save(state *domain.SessionState) error {
	state.UpdatedAt = time.Now()
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}},
		UpdateAll: true,
	}).Create(state).Error
}

func (r *sessionRepository) Delete(sessionID string) error {
	return r.db.Where("session_id = ?", sessionID).Delete(&domain.SessionState{}).Error
}
