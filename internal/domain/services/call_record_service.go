package services

import (
	"errors"
	"teleconsult-http-service/internal/domain/models"
	"teleconsult-http-service/internal/infrastructure/config"
	"time"

	"gorm.io/gorm"
)

// CallStatistics summarizes call outcomes over a period
type CallStatistics struct {
	TotalCalls      int64 `json:"totalCalls"`
	AnsweredCalls   int64 `json:"answeredCalls"`
	RejectedCalls   int64 `json:"rejectedCalls"`
	MissedCalls     int64 `json:"missedCalls"`
	AverageDuration int   `json:"averageDuration"` // seconds
}

// InterfaceCallRecordService defines the call history service interface
type InterfaceCallRecordService interface {
	GetAllCalls(page, pageSize int, status string) ([]models.Call, int64, error)
	GetCallByID(id string) (*models.Call, error)
	GetCallsByUser(uid string, page, pageSize int) ([]models.Call, int64, error)
	GetMissedCalls(uid string, page, pageSize int) ([]models.Call, int64, error)
	GetCallStatistics(since *time.Time) (*CallStatistics, error)
}

// CallRecordService provides call history queries. It only reads; call
// rows are written by the signaling service.
type CallRecordService struct {
	DB     *gorm.DB
	Config *config.Config
}

// NewCallRecordService creates a new call record service
func NewCallRecordService(db *gorm.DB, cfg *config.Config) InterfaceCallRecordService {
	return &CallRecordService{
		DB:     db,
		Config: cfg,
	}
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}

// GetAllCalls returns a page of call records, optionally filtered by status.
func (s *CallRecordService) GetAllCalls(page, pageSize int, status string) ([]models.Call, int64, error) {
	var calls []models.Call
	var total int64

	page, pageSize = normalizePage(page, pageSize)

	query := s.DB.Model(&models.Call{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	if err := query.Order("created_at DESC").
		Limit(pageSize).Offset(offset).
		Find(&calls).Error; err != nil {
		return nil, 0, err
	}

	return calls, total, nil
}

// GetCallByID returns a single call record
func (s *CallRecordService) GetCallByID(id string) (*models.Call, error) {
	var call models.Call
	if err := s.DB.Where("id = ?", id).First(&call).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCallNotFound
		}
		return nil, err
	}
	return &call, nil
}

// GetCallsByUser returns calls a user took part in, on either side.
func (s *CallRecordService) GetCallsByUser(uid string, page, pageSize int) ([]models.Call, int64, error) {
	var calls []models.Call
	var total int64

	page, pageSize = normalizePage(page, pageSize)

	query := s.DB.Model(&models.Call{}).
		Where("caller_id = ? OR recipient_id = ?", uid, uid)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	if err := query.Order("created_at DESC").
		Limit(pageSize).Offset(offset).
		Find(&calls).Error; err != nil {
		return nil, 0, err
	}

	return calls, total, nil
}

// GetMissedCalls returns calls that timed out while ringing this user.
func (s *CallRecordService) GetMissedCalls(uid string, page, pageSize int) ([]models.Call, int64, error) {
	var calls []models.Call
	var total int64

	page, pageSize = normalizePage(page, pageSize)

	query := s.DB.Model(&models.Call{}).
		Where("recipient_id = ? AND status = ?", uid, models.CallStatusTimeout)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	if err := query.Order("created_at DESC").
		Limit(pageSize).Offset(offset).
		Find(&calls).Error; err != nil {
		return nil, 0, err
	}

	return calls, total, nil
}

// GetCallStatistics aggregates call outcomes, optionally bounded to calls
// created after since.
func (s *CallRecordService) GetCallStatistics(since *time.Time) (*CallStatistics, error) {
	var statistics CallStatistics

	base := s.DB.Model(&models.Call{})
	if since != nil {
		base = base.Where("created_at >= ?", *since)
	}

	if err := base.Session(&gorm.Session{}).Count(&statistics.TotalCalls).Error; err != nil {
		return nil, err
	}

	// Answered means the call went active, whatever ended it later
	if err := base.Session(&gorm.Session{}).
		Where("answered_at IS NOT NULL").
		Count(&statistics.AnsweredCalls).Error; err != nil {
		return nil, err
	}

	if err := base.Session(&gorm.Session{}).
		Where("status = ?", models.CallStatusRejected).
		Count(&statistics.RejectedCalls).Error; err != nil {
		return nil, err
	}

	if err := base.Session(&gorm.Session{}).
		Where("status = ?", models.CallStatusTimeout).
		Count(&statistics.MissedCalls).Error; err != nil {
		return nil, err
	}

	if statistics.AnsweredCalls > 0 {
		var result struct {
			TotalDuration int64
		}
		if err := base.Session(&gorm.Session{}).
			Where("answered_at IS NOT NULL").
			Select("COALESCE(SUM(duration_seconds), 0) as total_duration").
			Scan(&result).Error; err != nil {
			return nil, err
		}
		statistics.AverageDuration = int(result.TotalDuration / statistics.AnsweredCalls)
	}

	return &statistics, nil
}
