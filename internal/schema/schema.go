// Package schema 提供请求数据的形状校验：只做接受/拒绝并给出字段级错误明细，
// 不包含任何业务行为。
package schema

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/user/filmfinder/internal/model"
)

// MinFilmYear 最早的电影年份
const MinFilmYear = 1887

// MinCriteriaYear 推荐条件允许的最早年份
const MinCriteriaYear = 1888

// MaxFilmsPerRequest 单次批量创建的影片数量上限
const MaxFilmsPerRequest = 100

var validate = validator.New()

// ValidationError 校验失败，携带字段级错误明细
type ValidationError struct {
	Details []string
}

func (e *ValidationError) Error() string {
	return "校验失败: " + strings.Join(e.Details, "; ")
}

// filmInput 带校验标签的影片输入镜像
type filmInput struct {
	Title       string   `validate:"required,max=255"`
	Description string   `validate:"required"`
	Genres      []string `validate:"min=1"`
	Actors      []string `validate:"min=1"`
	Director    string   `validate:"required"`
}

// ValidateFilmBatch 校验批量创建请求：数量上限、逐条字段、年份区间与状态取值
func ValidateFilmBatch(films []model.FilmInput) error {
	var details []string

	if len(films) == 0 {
		details = append(details, "films: 至少需要一部影片")
	}
	if len(films) > MaxFilmsPerRequest {
		details = append(details, fmt.Sprintf("films: 单次最多创建 %d 部影片", MaxFilmsPerRequest))
	}

	currentYear := time.Now().Year()
	for i, f := range films {
		mirror := filmInput{
			Title:       f.Title,
			Description: f.Description,
			Genres:      f.Genres,
			Actors:      f.Actors,
			Director:    f.Director,
		}
		if err := validate.Struct(mirror); err != nil {
			if errs, ok := err.(validator.ValidationErrors); ok {
				for _, fe := range errs {
					details = append(details, fmt.Sprintf("films[%d].%s: %s 校验失败", i, strings.ToLower(fe.Field()), fe.Tag()))
				}
			} else {
				return err
			}
		}
		if f.Year < MinFilmYear || f.Year > currentYear {
			details = append(details, fmt.Sprintf("films[%d].year: 年份需在 %d 到 %d 之间", i, MinFilmYear, currentYear))
		}
		if !model.ValidStatus(f.Status) {
			details = append(details, fmt.Sprintf("films[%d].status: 状态必须是 to-watch、watched 或 rejected", i))
		}
	}

	if len(details) > 0 {
		return &ValidationError{Details: details}
	}
	return nil
}

// ValidateCriteria 校验推荐条件的年份区间规则
func ValidateCriteria(c *model.RecommendationCriteria) error {
	if c == nil {
		return nil
	}

	var details []string
	currentYear := time.Now().Year()

	if c.YearFrom != nil && *c.YearFrom < MinCriteriaYear {
		details = append(details, fmt.Sprintf("year_from: 不能早于 %d 年", MinCriteriaYear))
	}
	if c.YearTo != nil && *c.YearTo > currentYear {
		details = append(details, "year_to: 不能晚于当前年份")
	}
	if c.YearFrom != nil && c.YearTo != nil && *c.YearTo < *c.YearFrom {
		details = append(details, "year_to: 必须大于等于 year_from")
	}

	if len(details) > 0 {
		return &ValidationError{Details: details}
	}
	return nil
}

// ValidateStatus 校验状态变更请求的目标状态
func ValidateStatus(status string) error {
	if !model.ValidStatus(status) {
		return &ValidationError{Details: []string{"new_status: 状态必须是 to-watch、watched 或 rejected"}}
	}
	return nil
}
