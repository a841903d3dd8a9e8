package service

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/user/filmfinder/internal/model"
	"github.com/user/filmfinder/internal/schema"
	"golang.org/x/sync/singleflight"
)

// ChatClient 聊天补全客户端，方便测试替换
type ChatClient interface {
	SendChatRequest(ctx context.Context, message string) (*ChatResponse, error)
	Model() string
}

// RecommendationStore 推荐流程需要的持久化操作
type RecommendationStore interface {
	ListFilmTitles(userID int) ([]string, error)
	GetPreferences(userID int) (*model.UserPreference, error)
	CreateGenerationLog(entry *model.GenerationLog) (*model.GenerationLog, error)
	CreateGenerationErrorLog(entry *model.GenerationErrorLog) error
}

// RecommendationService AI 推荐服务
type RecommendationService struct {
	ai    ChatClient
	store RecommendationStore
	group singleflight.Group
}

// NewRecommendationService 创建推荐服务
func NewRecommendationService(ai ChatClient, store RecommendationStore) *RecommendationService {
	return &RecommendationService{
		ai:    ai,
		store: store,
	}
}

// GetRecommendations 生成推荐影片
// 条件缺失时回退到用户偏好（偏好不存在不算错误）；
// 相同用户的相同条件并发请求合并为一次生成
func (s *RecommendationService) GetRecommendations(ctx context.Context, userID int, criteria *model.RecommendationCriteria) (*model.RecommendationResponse, error) {
	// 条件校验必须发生在任何网络和数据库调用之前
	if criteria != nil {
		if err := schema.ValidateCriteria(criteria); err != nil {
			return nil, err
		}
	}

	// 未提供条件时尝试读取用户偏好
	if criteria.Empty() {
		pref, err := s.store.GetPreferences(userID)
		if err != nil {
			return nil, s.logFailure(userID, criteria, err)
		}
		if pref != nil {
			criteria = &model.RecommendationCriteria{
				Actors:    pref.Actors,
				Directors: pref.Directors,
				Genres:    pref.Genres,
				YearFrom:  pref.YearFrom,
				YearTo:    pref.YearTo,
			}
		}
	}

	hash := CriteriaHash(criteria)
	key := fmt.Sprintf("%d:%s", userID, hash)

	result, err, _ := s.group.Do(key, func() (interface{}, error) {
		return s.generate(ctx, userID, criteria, hash)
	})
	if err != nil {
		return nil, err
	}
	return result.(*model.RecommendationResponse), nil
}

// generate 执行一次生成：调用模型、解析回复、过滤已有影片、写生成日志
func (s *RecommendationService) generate(ctx context.Context, userID int, criteria *model.RecommendationCriteria, hash string) (*model.RecommendationResponse, error) {
	start := time.Now()

	prompt := BuildPrompt(criteria)

	resp, err := s.ai.SendChatRequest(ctx, prompt)
	if err != nil {
		return nil, s.logFailure(userID, criteria, err)
	}

	movies, err := parseMovies(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, s.logFailure(userID, criteria, err)
	}

	filtered, err := s.filterOwned(userID, movies)
	if err != nil {
		return nil, s.logFailure(userID, criteria, err)
	}

	entry, err := s.store.CreateGenerationLog(&model.GenerationLog{
		UserID:             userID,
		CriteriaHash:       hash,
		GeneratedCount:     len(filtered),
		GenerationDuration: time.Since(start).Milliseconds(),
		Model:              s.ai.Model(),
	})
	if err != nil {
		// 日志写入本身不重试，失败直接上抛
		return nil, err
	}

	return &model.RecommendationResponse{
		Recommendations: filtered,
		GenerationID:    entry.ID,
		GeneratedCount:  entry.GeneratedCount,
	}, nil
}

// filterOwned 剔除用户已拥有的影片（标题忽略大小写比较）
func (s *RecommendationService) filterOwned(userID int, movies []model.RecommendedFilm) ([]model.RecommendedFilm, error) {
	titles, err := s.store.ListFilmTitles(userID)
	if err != nil {
		return nil, err
	}

	owned := make(map[string]bool, len(titles))
	for _, t := range titles {
		owned[strings.ToLower(t)] = true
	}

	filtered := make([]model.RecommendedFilm, 0, len(movies))
	for _, m := range movies {
		if !owned[strings.ToLower(m.Title)] {
			filtered = append(filtered, m)
		}
	}
	return filtered, nil
}

// logFailure 写入一条生成失败日志后原样返回错误
// 失败日志本身写失败时只打日志，不掩盖原始错误
func (s *RecommendationService) logFailure(userID int, criteria *model.RecommendationCriteria, cause error) error {
	code := ErrCodeGenerationError
	if oe, ok := cause.(*OpenRouterError); ok {
		code = oe.Code
	}

	if err := s.store.CreateGenerationErrorLog(&model.GenerationErrorLog{
		UserID:       userID,
		ErrorMessage: cause.Error(),
		ErrorCode:    code,
		CriteriaHash: CriteriaHash(criteria),
		Model:        s.ai.Model(),
	}); err != nil {
		log.Printf("[Recommendation] 写入生成失败日志失败: %v (原始错误: %v)", err, cause)
	}

	return cause
}

// CriteriaHash 计算推荐条件的内容哈希，用于日志关联与去重
// 空条件返回空串
func CriteriaHash(criteria *model.RecommendationCriteria) string {
	if criteria.Empty() {
		return ""
	}
	data, err := json.Marshal(criteria)
	if err != nil {
		return ""
	}
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

// BuildPrompt 从结构化条件构建确定性的提示词
func BuildPrompt(criteria *model.RecommendationCriteria) string {
	var b strings.Builder
	b.WriteString("Recommend movies matching the following criteria.")

	if criteria != nil {
		if len(criteria.Actors) > 0 {
			b.WriteString(" Starring actors: ")
			b.WriteString(strings.Join(criteria.Actors, ", "))
			b.WriteString(".")
		}
		if len(criteria.Directors) > 0 {
			b.WriteString(" Directed by: ")
			b.WriteString(strings.Join(criteria.Directors, ", "))
			b.WriteString(".")
		}
		if len(criteria.Genres) > 0 {
			b.WriteString(" Genres: ")
			b.WriteString(strings.Join(criteria.Genres, ", "))
			b.WriteString(".")
		}
		switch {
		case criteria.YearFrom != nil && criteria.YearTo != nil:
			b.WriteString(fmt.Sprintf(" Released between %d and %d.", *criteria.YearFrom, *criteria.YearTo))
		case criteria.YearFrom != nil:
			b.WriteString(fmt.Sprintf(" Released in %d or later.", *criteria.YearFrom))
		case criteria.YearTo != nil:
			b.WriteString(fmt.Sprintf(" Released in %d or earlier.", *criteria.YearTo))
		}
	}

	b.WriteString(" Include the full cast list for each movie." +
		" Return a JSON object with a \"movies\" array sorted by year in descending order.")
	return b.String()
}

// movieListPayload 模型回复内容的预期结构
type movieListPayload struct {
	Movies []model.RecommendedFilm `json:"movies"`
}

// parseMovies 解析模型回复中的影片列表
// 内容是模型的最终应答，任何违例都按解析失败处理且不重试
func parseMovies(content string) ([]model.RecommendedFilm, error) {
	var payload movieListPayload
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return nil, &ParseError{Message: "内容不是合法 JSON", Cause: err}
	}
	if payload.Movies == nil {
		return nil, &ParseError{Message: "缺少 movies 字段"}
	}

	for i, m := range payload.Movies {
		if strings.TrimSpace(m.Title) == "" {
			return nil, &ParseError{Message: fmt.Sprintf("movies[%d] 缺少 title", i)}
		}
		if m.Year == 0 {
			return nil, &ParseError{Message: fmt.Sprintf("movies[%d] 缺少 year", i)}
		}
		if strings.TrimSpace(m.Description) == "" {
			return nil, &ParseError{Message: fmt.Sprintf("movies[%d] 缺少 description", i)}
		}
		if len(m.Genres) == 0 {
			return nil, &ParseError{Message: fmt.Sprintf("movies[%d] 缺少 genres", i)}
		}
		if len(m.Actors) == 0 {
			return nil, &ParseError{Message: fmt.Sprintf("movies[%d] 缺少 actors", i)}
		}
		if strings.TrimSpace(m.Director) == "" {
			return nil, &ParseError{Message: fmt.Sprintf("movies[%d] 缺少 director", i)}
		}
	}

	return payload.Movies, nil
}
