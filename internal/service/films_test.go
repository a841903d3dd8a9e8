package service

import (
	"errors"
	"testing"

	"github.com/user/filmfinder/internal/model"
	"github.com/user/filmfinder/internal/schema"
	"gorm.io/gorm"
)

// fakeFilmStore 测试用持久化桩
type fakeFilmStore struct {
	films      []*model.UserFilm
	total      int64
	duplicates []string
	notFound   bool

	gotStatus string
	gotSearch string
	gotPage   int
	gotLimit  int
	created   []*model.UserFilm
}

func (f *fakeFilmStore) ListFilms(userID int, status, search string, page, limit int) ([]*model.UserFilm, int64, error) {
	f.gotStatus, f.gotSearch, f.gotPage, f.gotLimit = status, search, page, limit
	return f.films, f.total, nil
}

func (f *fakeFilmStore) CreateFilms(userID int, films []*model.UserFilm) ([]*model.UserFilm, []string, error) {
	if len(f.duplicates) > 0 {
		return nil, f.duplicates, nil
	}
	f.created = films
	return films, nil, nil
}

func (f *fakeFilmStore) UpdateFilmStatus(userID, filmID int, newStatus string) (*model.UserFilm, error) {
	if f.notFound {
		return nil, gorm.ErrRecordNotFound
	}
	return &model.UserFilm{ID: filmID, UserID: userID, Status: newStatus}, nil
}

func (f *fakeFilmStore) DeleteFilm(userID, filmID int) error {
	if f.notFound {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func validInput(title string) model.FilmInput {
	return model.FilmInput{
		Title:       title,
		Year:        1995,
		Description: "银行劫案与警探的猫鼠游戏",
		Genres:      []string{"Crime"},
		Actors:      []string{"Al Pacino"},
		Director:    "Michael Mann",
		Status:      model.StatusToWatch,
	}
}

func TestFilmListDefaults(t *testing.T) {
	store := &fakeFilmStore{total: 0}
	svc := NewFilmService(store)

	result, err := svc.List(1, ListQuery{})
	if err != nil {
		t.Fatalf("查询失败: %v", err)
	}

	if store.gotPage != DefaultPage || store.gotLimit != DefaultLimit {
		t.Errorf("缺省分页参数不正确: page=%d limit=%d", store.gotPage, store.gotLimit)
	}
	if result.Page != DefaultPage || result.Limit != DefaultLimit {
		t.Errorf("响应分页字段不正确: %+v", result)
	}
	// 空结果序列化为 [] 而不是 null
	if result.Data == nil {
		t.Error("空结果的 Data 不应为 nil")
	}
}

func TestFilmListInvalidStatus(t *testing.T) {
	svc := NewFilmService(&fakeFilmStore{})

	_, err := svc.List(1, ListQuery{Status: "favorite"})

	var ve *schema.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("非法状态过滤应返回校验错误，实际 %v", err)
	}
}

func TestFilmCreate(t *testing.T) {
	store := &fakeFilmStore{}
	svc := NewFilmService(store)

	// 来自推荐结果的影片要携带其生成批次 ID 落库
	genID := 42
	fromRecommendation := validInput("Heat")
	fromRecommendation.GenerationID = &genID

	created, err := svc.Create(1, []model.FilmInput{fromRecommendation, validInput("Ronin")})
	if err != nil {
		t.Fatalf("创建失败: %v", err)
	}

	if len(created) != 2 {
		t.Fatalf("期望创建 2 部，实际 %d", len(created))
	}
	if created[0].Title != "Heat" || created[0].Status != model.StatusToWatch {
		t.Errorf("创建内容不正确: %+v", created[0])
	}
	if len(created[0].Genres) != 1 || created[0].Genres[0] != "Crime" {
		t.Errorf("数组字段未正确转换: %+v", created[0].Genres)
	}
	if created[0].GenerationID == nil || *created[0].GenerationID != genID {
		t.Errorf("生成批次 ID 未透传: %v", created[0].GenerationID)
	}
	if created[1].GenerationID != nil {
		t.Errorf("手动录入的影片不应携带生成批次 ID: %v", created[1].GenerationID)
	}
}

func TestFilmCreateDuplicateTitles(t *testing.T) {
	store := &fakeFilmStore{duplicates: []string{"Heat", "Ronin"}}
	svc := NewFilmService(store)

	_, err := svc.Create(1, []model.FilmInput{validInput("Heat"), validInput("Ronin")})

	var dup *DuplicateFilmsError
	if !errors.As(err, &dup) {
		t.Fatalf("期望 *DuplicateFilmsError，实际 %v", err)
	}
	if len(dup.Titles) != 2 || dup.Titles[0] != "Heat" || dup.Titles[1] != "Ronin" {
		t.Errorf("冲突标题列表不正确: %v", dup.Titles)
	}
	if store.created != nil {
		t.Error("存在重复时整批都不应创建")
	}
}

func TestFilmCreateValidation(t *testing.T) {
	store := &fakeFilmStore{}
	svc := NewFilmService(store)

	bad := validInput("Heat")
	bad.Year = 1800
	bad.Director = ""

	_, err := svc.Create(1, []model.FilmInput{bad})

	var ve *schema.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("期望 *schema.ValidationError，实际 %v", err)
	}
	if len(ve.Details) < 2 {
		t.Errorf("应报告所有字段错误，实际 %v", ve.Details)
	}
	if store.created != nil {
		t.Error("校验失败不应触达存储层")
	}
}

func TestFilmUpdateStatus(t *testing.T) {
	svc := NewFilmService(&fakeFilmStore{})

	film, err := svc.UpdateStatus(1, 7, model.StatusWatched)
	if err != nil {
		t.Fatalf("更新失败: %v", err)
	}
	if film.Status != model.StatusWatched {
		t.Errorf("状态未更新: %+v", film)
	}
}

func TestFilmUpdateStatusInvalid(t *testing.T) {
	svc := NewFilmService(&fakeFilmStore{})

	_, err := svc.UpdateStatus(1, 7, "archived")

	var ve *schema.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("非法状态应返回校验错误，实际 %v", err)
	}
}

func TestFilmUpdateStatusNotFound(t *testing.T) {
	svc := NewFilmService(&fakeFilmStore{notFound: true})

	_, err := svc.UpdateStatus(1, 999, model.StatusWatched)
	if !errors.Is(err, ErrFilmNotFound) {
		t.Fatalf("期望 ErrFilmNotFound，实际 %v", err)
	}
}

func TestFilmDeleteNotFound(t *testing.T) {
	svc := NewFilmService(&fakeFilmStore{notFound: true})

	if err := svc.Delete(1, 999); !errors.Is(err, ErrFilmNotFound) {
		t.Fatalf("期望 ErrFilmNotFound，实际 %v", err)
	}
}
