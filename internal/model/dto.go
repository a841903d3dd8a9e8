package model

// RecommendationCriteria 推荐条件（瞬态，不落库）
type RecommendationCriteria struct {
	Actors    []string `json:"actors,omitempty"`
	Directors []string `json:"directors,omitempty"`
	Genres    []string `json:"genres,omitempty"`
	YearFrom  *int     `json:"year_from,omitempty"`
	YearTo    *int     `json:"year_to,omitempty"`
}

// Empty 判断条件是否为空
func (c *RecommendationCriteria) Empty() bool {
	if c == nil {
		return true
	}
	return len(c.Actors) == 0 && len(c.Directors) == 0 && len(c.Genres) == 0 &&
		c.YearFrom == nil && c.YearTo == nil
}

// RecommendedFilm 模型返回的单部推荐影片
type RecommendedFilm struct {
	Title       string   `json:"title"`
	Year        int      `json:"year"`
	Description string   `json:"description"`
	Genres      []string `json:"genres"`
	Actors      []string `json:"actors"`
	Director    string   `json:"director"`
}

// RecommendationResponse 推荐接口响应
type RecommendationResponse struct {
	Recommendations []RecommendedFilm `json:"recommendations"`
	GenerationID    int               `json:"generation_id"`
	GeneratedCount  int               `json:"generated_count"`
}

// PaginatedFilms 分页影片列表
type PaginatedFilms struct {
	Data  []*UserFilm `json:"data"`
	Page  int         `json:"page"`
	Limit int         `json:"limit"`
	Total int64       `json:"total"`
}

// FilmInput 创建影片的单条输入
type FilmInput struct {
	Title        string   `json:"title"`
	Year         int      `json:"year"`
	Description  string   `json:"description"`
	Genres       []string `json:"genres"`
	Actors       []string `json:"actors"`
	Director     string   `json:"director"`
	Status       string   `json:"status"`
	GenerationID *int     `json:"generation_id,omitempty"`
}
