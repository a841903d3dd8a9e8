package repository

import (
	"errors"

	"github.com/user/filmfinder/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PreferenceRepository struct {
	db *gorm.DB
}

func NewPreferenceRepository(db *gorm.DB) *PreferenceRepository {
	return &PreferenceRepository{db: db}
}

// GetByUser 查询用户偏好，不存在时返回 nil（不是错误）
func (r *PreferenceRepository) GetByUser(userID int) (*model.UserPreference, error) {
	var pref model.UserPreference
	err := r.db.Where("user_id = ?", userID).First(&pref).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pref, nil
}

// Upsert 按 user_id 覆盖写入用户偏好
func (r *PreferenceRepository) Upsert(pref *model.UserPreference) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"actors", "directors", "genres", "year_from", "year_to"}),
	}).Create(pref).Error
}
