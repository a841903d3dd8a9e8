package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/user/filmfinder/internal/middleware"
	"github.com/user/filmfinder/internal/model"
	"github.com/user/filmfinder/internal/service"
	"github.com/user/filmfinder/internal/utils"
)

// createFilmsRequest 批量创建请求体
type createFilmsRequest struct {
	Films []model.FilmInput `json:"films" binding:"required"`
}

// updateStatusRequest 状态变更请求体
type updateStatusRequest struct {
	NewStatus string `json:"new_status" binding:"required"`
}

// ListFilms 分页查询当前用户的影片
func (h *Handler) ListFilms(c *gin.Context) {
	userID := middleware.GetUserID(c)

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "9"))

	result, err := h.Films.List(userID, service.ListQuery{
		Status: c.Query("status"),
		Search: c.Query("search"),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		h.mapServiceError(c, err)
		return
	}

	c.JSON(200, result)
}

// CreateFilms 批量创建影片，重复标题整批拒绝并返回 409
func (h *Handler) CreateFilms(c *gin.Context) {
	userID := middleware.GetUserID(c)

	var req createFilmsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "请求体格式不正确")
		return
	}

	created, err := h.Films.Create(userID, req.Films)
	if err != nil {
		h.mapServiceError(c, err)
		return
	}

	c.JSON(201, created)
}

// UpdateFilmStatus 更新影片状态
func (h *Handler) UpdateFilmStatus(c *gin.Context) {
	userID := middleware.GetUserID(c)

	filmID, ok := parseFilmID(c)
	if !ok {
		return
	}

	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "请求体格式不正确")
		return
	}

	film, err := h.Films.UpdateStatus(userID, filmID, req.NewStatus)
	if err != nil {
		h.mapServiceError(c, err)
		return
	}

	c.JSON(200, film)
}

// DeleteFilm 删除影片
func (h *Handler) DeleteFilm(c *gin.Context) {
	userID := middleware.GetUserID(c)

	filmID, ok := parseFilmID(c)
	if !ok {
		return
	}

	if err := h.Films.Delete(userID, filmID); err != nil {
		h.mapServiceError(c, err)
		return
	}

	c.Status(204)
}

// parseFilmID 解析路径中的影片 ID，非法时直接应答 400
func parseFilmID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("filmId"))
	if err != nil || id <= 0 {
		utils.BadRequest(c, "影片 ID 格式不正确")
		return 0, false
	}
	return id, true
}
