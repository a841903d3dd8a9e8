package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/lib/pq"
	"github.com/user/filmfinder/internal/middleware"
	"github.com/user/filmfinder/internal/model"
	"github.com/user/filmfinder/internal/schema"
	"github.com/user/filmfinder/internal/utils"
)

// preferencesRequest 偏好写入请求体，字段与推荐条件同构
type preferencesRequest struct {
	Actors    []string `json:"actors"`
	Directors []string `json:"directors"`
	Genres    []string `json:"genres"`
	YearFrom  *int     `json:"year_from"`
	YearTo    *int     `json:"year_to"`
}

// GetPreferences 查询当前用户的偏好
func (h *Handler) GetPreferences(c *gin.Context) {
	userID := middleware.GetUserID(c)

	pref, err := h.Repos.Preference.GetByUser(userID)
	if err != nil {
		h.mapServiceError(c, err)
		return
	}
	if pref == nil {
		utils.NotFound(c, "尚未设置偏好")
		return
	}

	c.JSON(200, pref)
}

// UpdatePreferences 覆盖写入当前用户的偏好
func (h *Handler) UpdatePreferences(c *gin.Context) {
	userID := middleware.GetUserID(c)

	var req preferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "请求体格式不正确")
		return
	}

	// 年份规则与推荐条件一致
	if err := schema.ValidateCriteria(&model.RecommendationCriteria{
		YearFrom: req.YearFrom,
		YearTo:   req.YearTo,
	}); err != nil {
		h.mapServiceError(c, err)
		return
	}

	pref := &model.UserPreference{
		UserID:    userID,
		Actors:    pq.StringArray(req.Actors),
		Directors: pq.StringArray(req.Directors),
		Genres:    pq.StringArray(req.Genres),
		YearFrom:  req.YearFrom,
		YearTo:    req.YearTo,
	}
	if err := h.Repos.Preference.Upsert(pref); err != nil {
		h.mapServiceError(c, err)
		return
	}

	c.JSON(200, pref)
}
