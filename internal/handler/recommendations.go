package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/user/filmfinder/internal/middleware"
	"github.com/user/filmfinder/internal/model"
	"github.com/user/filmfinder/internal/schema"
	"github.com/user/filmfinder/internal/utils"
)

// recommendationRequest 推荐请求体，条件可省略
type recommendationRequest struct {
	Criteria *model.RecommendationCriteria `json:"criteria"`
}

// GetRecommendations 生成 AI 推荐
// 条件校验失败返回 400 且不发起任何外部调用；
// 上游失败统一 500，细节进服务端日志和生成失败日志表
func (h *Handler) GetRecommendations(c *gin.Context) {
	userID := middleware.GetUserID(c)

	var req recommendationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "请求体格式不正确")
		return
	}

	if req.Criteria != nil {
		if err := schema.ValidateCriteria(req.Criteria); err != nil {
			h.mapServiceError(c, err)
			return
		}
	}

	result, err := h.Recommendations.GetRecommendations(c.Request.Context(), userID, req.Criteria)
	if err != nil {
		h.mapServiceError(c, err)
		return
	}

	c.JSON(200, result)
}
