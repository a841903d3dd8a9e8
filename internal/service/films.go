package service

import (
	"errors"

	"github.com/lib/pq"
	"github.com/user/filmfinder/internal/model"
	"github.com/user/filmfinder/internal/schema"
	"gorm.io/gorm"
)

// 列表查询的分页默认值
const (
	DefaultPage  = 1
	DefaultLimit = 9
)

// FilmStore 影片服务需要的持久化操作
type FilmStore interface {
	ListFilms(userID int, status, search string, page, limit int) ([]*model.UserFilm, int64, error)
	CreateFilms(userID int, films []*model.UserFilm) ([]*model.UserFilm, []string, error)
	UpdateFilmStatus(userID, filmID int, newStatus string) (*model.UserFilm, error)
	DeleteFilm(userID, filmID int) error
}

// FilmService 影片服务
type FilmService struct {
	store FilmStore
}

// NewFilmService 创建影片服务
func NewFilmService(store FilmStore) *FilmService {
	return &FilmService{store: store}
}

// ListQuery 列表查询参数
type ListQuery struct {
	Status string
	Search string
	Page   int
	Limit  int
}

// List 分页查询用户影片
func (s *FilmService) List(userID int, q ListQuery) (*model.PaginatedFilms, error) {
	if q.Page < 1 {
		q.Page = DefaultPage
	}
	if q.Limit < 1 {
		q.Limit = DefaultLimit
	}
	if q.Status != "" {
		if err := schema.ValidateStatus(q.Status); err != nil {
			return nil, err
		}
	}

	films, total, err := s.store.ListFilms(userID, q.Status, q.Search, q.Page, q.Limit)
	if err != nil {
		return nil, err
	}
	if films == nil {
		films = []*model.UserFilm{}
	}

	return &model.PaginatedFilms{
		Data:  films,
		Page:  q.Page,
		Limit: q.Limit,
		Total: total,
	}, nil
}

// Create 批量创建影片
// 任一标题与用户已有影片重复时整批拒绝，并列出全部冲突标题
func (s *FilmService) Create(userID int, inputs []model.FilmInput) ([]*model.UserFilm, error) {
	if err := schema.ValidateFilmBatch(inputs); err != nil {
		return nil, err
	}

	films := make([]*model.UserFilm, 0, len(inputs))
	for _, in := range inputs {
		films = append(films, &model.UserFilm{
			Title:        in.Title,
			Year:         in.Year,
			Description:  in.Description,
			Genres:       pq.StringArray(in.Genres),
			Actors:       pq.StringArray(in.Actors),
			Director:     in.Director,
			Status:       in.Status,
			GenerationID: in.GenerationID,
		})
	}

	created, duplicates, err := s.store.CreateFilms(userID, films)
	if err != nil {
		return nil, err
	}
	if len(duplicates) > 0 {
		return nil, &DuplicateFilmsError{Titles: duplicates}
	}
	return created, nil
}

// UpdateStatus 更新影片状态（状态更新与日志追加是同一个原子操作）
func (s *FilmService) UpdateStatus(userID, filmID int, newStatus string) (*model.UserFilm, error) {
	if err := schema.ValidateStatus(newStatus); err != nil {
		return nil, err
	}

	film, err := s.store.UpdateFilmStatus(userID, filmID, newStatus)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrFilmNotFound
	}
	if err != nil {
		return nil, err
	}
	return film, nil
}

// Delete 删除影片
func (s *FilmService) Delete(userID, filmID int) error {
	err := s.store.DeleteFilm(userID, filmID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrFilmNotFound
	}
	return err
}
