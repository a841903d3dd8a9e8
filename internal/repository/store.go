package repository

import (
	"github.com/user/filmfinder/internal/model"
)

// 服务层按接口消费持久化操作，这里把各仓库聚合成统一入口

// ListFilms 分页查询用户影片
func (r *Repositories) ListFilms(userID int, status, search string, page, limit int) ([]*model.UserFilm, int64, error) {
	return r.UserFilm.List(userID, status, search, page, limit)
}

// CreateFilms 批量创建影片（事务内查重）
func (r *Repositories) CreateFilms(userID int, films []*model.UserFilm) ([]*model.UserFilm, []string, error) {
	return r.UserFilm.CreateBatch(userID, films)
}

// UpdateFilmStatus 原子更新影片状态并追加状态日志
func (r *Repositories) UpdateFilmStatus(userID, filmID int, newStatus string) (*model.UserFilm, error) {
	return r.UserFilm.UpdateStatusWithLog(userID, filmID, newStatus)
}

// DeleteFilm 删除用户影片
func (r *Repositories) DeleteFilm(userID, filmID int) error {
	return r.UserFilm.Delete(userID, filmID)
}

// ListFilmTitles 返回用户全部影片标题
func (r *Repositories) ListFilmTitles(userID int) ([]string, error) {
	return r.UserFilm.ListTitles(userID)
}

// GetPreferences 查询用户偏好
func (r *Repositories) GetPreferences(userID int) (*model.UserPreference, error) {
	return r.Preference.GetByUser(userID)
}

// CreateGenerationLog 写入生成日志
func (r *Repositories) CreateGenerationLog(entry *model.GenerationLog) (*model.GenerationLog, error) {
	return r.Generation.CreateLog(entry)
}

// CreateGenerationErrorLog 写入生成失败日志
func (r *Repositories) CreateGenerationErrorLog(entry *model.GenerationErrorLog) error {
	return r.Generation.CreateErrorLog(entry)
}
