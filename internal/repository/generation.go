package repository

import (
	"time"

	"github.com/user/filmfinder/internal/model"
	"gorm.io/gorm"
)

type GenerationRepository struct {
	db *gorm.DB
}

func NewGenerationRepository(db *gorm.DB) *GenerationRepository {
	return &GenerationRepository{db: db}
}

// CreateLog 写入一条生成日志，返回带 ID 的记录
func (r *GenerationRepository) CreateLog(entry *model.GenerationLog) (*model.GenerationLog, error) {
	now := time.Now()
	entry.CreatedAt = now
	entry.UpdatedAt = now
	if err := r.db.Create(entry).Error; err != nil {
		return nil, err
	}
	return entry, nil
}

// CreateErrorLog 写入一条生成失败日志
func (r *GenerationRepository) CreateErrorLog(entry *model.GenerationErrorLog) error {
	entry.CreatedAt = time.Now()
	return r.db.Create(entry).Error
}
