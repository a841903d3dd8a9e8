package repository

import (
	"strings"
	"time"

	"github.com/user/filmfinder/internal/model"
	"gorm.io/gorm"
)

type UserFilmRepository struct {
	db *gorm.DB
}

func NewUserFilmRepository(db *gorm.DB) *UserFilmRepository {
	return &UserFilmRepository{db: db}
}

// List 按条件分页查询用户影片，返回记录和过滤后的总数
// 排序固定为 created_at DESC, id DESC（同一秒创建的记录用 id 断开平局）
func (r *UserFilmRepository) List(userID int, status, search string, page, limit int) ([]*model.UserFilm, int64, error) {
	query := r.db.Model(&model.UserFilm{}).Where("user_id = ?", userID)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if search != "" {
		query = query.Where("title ILIKE ?", "%"+search+"%")
	}

	// total 是过滤后的全量计数，与分页无关
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var films []*model.UserFilm
	err := query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Offset((page - 1) * limit).
		Find(&films).Error
	return films, total, err
}

// ExistingTitles 批量查询用户已拥有的标题（单次查询，忽略大小写）
func (r *UserFilmRepository) ExistingTitles(tx *gorm.DB, userID int, titles []string) ([]string, error) {
	lowered := make([]string, 0, len(titles))
	for _, t := range titles {
		lowered = append(lowered, strings.ToLower(t))
	}

	var existing []string
	err := tx.Model(&model.UserFilm{}).
		Where("user_id = ? AND LOWER(title) IN ?", userID, lowered).
		Pluck("title", &existing).Error
	return existing, err
}

// CreateBatch 在单个事务内执行重复检查与批量插入
// 存在重复标题时返回全部冲突标题且不插入任何记录
func (r *UserFilmRepository) CreateBatch(userID int, films []*model.UserFilm) ([]*model.UserFilm, []string, error) {
	var duplicates []string

	err := r.db.Transaction(func(tx *gorm.DB) error {
		titles := make([]string, 0, len(films))
		for _, f := range films {
			titles = append(titles, f.Title)
		}

		existing, err := r.ExistingTitles(tx, userID, titles)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			duplicates = existing
			return nil
		}

		now := time.Now()
		for _, f := range films {
			f.UserID = userID
			f.CreatedAt = now
			f.UpdatedAt = now
		}
		return tx.Create(&films).Error
	})
	if err != nil {
		return nil, nil, err
	}
	if len(duplicates) > 0 {
		return nil, duplicates, nil
	}
	return films, nil, nil
}

// GetByID 按 (id, user_id) 查询，避免泄露他人记录的存在性
func (r *UserFilmRepository) GetByID(userID, id int) (*model.UserFilm, error) {
	var film model.UserFilm
	err := r.db.Where("id = ? AND user_id = ?", id, userID).First(&film).Error
	if err != nil {
		return nil, err
	}
	return &film, nil
}

// UpdateStatusWithLog 在单个事务内更新状态并追加状态变更日志
// 不存在与无权限统一返回 gorm.ErrRecordNotFound，不区分二者
func (r *UserFilmRepository) UpdateStatusWithLog(userID, filmID int, newStatus string) (*model.UserFilm, error) {
	var film model.UserFilm

	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND user_id = ?", filmID, userID).First(&film).Error; err != nil {
			return err
		}

		prevStatus := film.Status
		now := time.Now()
		if err := tx.Model(&film).Updates(map[string]interface{}{
			"status":     newStatus,
			"updated_at": now,
		}).Error; err != nil {
			return err
		}
		film.Status = newStatus
		film.UpdatedAt = now

		return tx.Create(&model.FilmStatusLog{
			FilmID:          film.ID,
			UserID:          userID,
			PrevStatus:      prevStatus,
			NextStatus:      newStatus,
			StatusChangedAt: now,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return &film, nil
}

// Delete 删除用户影片，无命中返回 gorm.ErrRecordNotFound
func (r *UserFilmRepository) Delete(userID, filmID int) error {
	res := r.db.Where("id = ? AND user_id = ?", filmID, userID).Delete(&model.UserFilm{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListTitles 返回用户全部影片标题（推荐结果去重用）
func (r *UserFilmRepository) ListTitles(userID int) ([]string, error) {
	var titles []string
	err := r.db.Model(&model.UserFilm{}).
		Where("user_id = ?", userID).
		Pluck("title", &titles).Error
	return titles, err
}
