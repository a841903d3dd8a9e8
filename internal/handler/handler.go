package handler

import (
	"errors"
	"log"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/user/filmfinder/internal/config"
	"github.com/user/filmfinder/internal/middleware"
	"github.com/user/filmfinder/internal/model"
	"github.com/user/filmfinder/internal/repository"
	"github.com/user/filmfinder/internal/schema"
	"github.com/user/filmfinder/internal/service"
	"github.com/user/filmfinder/internal/utils"
)

// Handler HTTP 处理器
type Handler struct {
	Repos           *repository.Repositories
	Config          *config.Config
	Films           *service.FilmService
	Recommendations *service.RecommendationService
	Throttle        *middleware.Throttle
}

// NewHandler 创建处理器
// AI 客户端进程内只构造一次，按引用传入请求级服务
func NewHandler(repos *repository.Repositories, cfg *config.Config, ai service.ChatClient, throttle *middleware.Throttle) *Handler {
	return &Handler{
		Repos:           repos,
		Config:          cfg,
		Films:           service.NewFilmService(repos),
		Recommendations: service.NewRecommendationService(ai, repos),
		Throttle:        throttle,
	}
}

// mapServiceError 把服务层的类型化错误映射为 HTTP 状态码
// 未识别的错误一律 500，细节只进服务端日志
func (h *Handler) mapServiceError(c *gin.Context, err error) {
	var validationErr *schema.ValidationError
	if errors.As(err, &validationErr) {
		utils.ErrorWithDetails(c, 400, "校验失败", validationErr.Details)
		return
	}

	if errors.Is(err, service.ErrFilmNotFound) {
		utils.NotFound(c, "影片不存在或无权操作")
		return
	}

	var dupErr *service.DuplicateFilmsError
	if errors.As(err, &dupErr) {
		utils.Conflict(c, dupErr.Error(), gin.H{"titles": dupErr.Titles})
		return
	}

	log.Printf("[Handler] %s %s 服务层错误: %v", c.Request.Method, c.Request.URL.Path, err)
	utils.InternalServerError(c, "")
}

// ==================== 认证 ====================

// loginRequest 登录请求体
type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// registerRequest 注册请求体
type registerRequest struct {
	Email           string `json:"email" binding:"required,email"`
	Password        string `json:"password" binding:"required,min=8"`
	ConfirmPassword string `json:"confirmPassword" binding:"required"`
}

// Login 登录处理
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "邮箱或密码格式不正确")
		return
	}

	user, err := h.Repos.User.FindByEmail(req.Email)
	if err != nil {
		log.Printf("[Handler] 查询用户失败: %v", err)
		utils.InternalServerError(c, "")
		return
	}

	// 用户不存在与密码错误统一应答，不泄露账号是否存在
	if user == nil || !h.Repos.User.CheckPassword(user, req.Password) {
		h.Throttle.Fail(c)
		utils.BadRequest(c, "邮箱或密码错误")
		return
	}

	h.Throttle.Reset(c)
	if err := h.signIn(c, user); err != nil {
		utils.InternalServerError(c, "登录失败，请重试")
		return
	}

	c.JSON(200, gin.H{
		"user":       user,
		"redirectTo": "/recommendations",
	})
}

// Register 注册处理
func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "注册信息格式不正确：邮箱需合法，密码至少 8 个字符")
		return
	}

	if req.Password != req.ConfirmPassword {
		utils.BadRequest(c, "两次输入的密码不一致")
		return
	}

	existing, err := h.Repos.User.FindByEmail(req.Email)
	if err != nil {
		log.Printf("[Handler] 查询用户失败: %v", err)
		utils.InternalServerError(c, "")
		return
	}
	if existing != nil {
		utils.BadRequest(c, "该邮箱已被注册")
		return
	}

	// 默认截取邮箱 @ 符号前的内容作为用户名
	username := req.Email
	if parts := strings.Split(req.Email, "@"); len(parts) > 0 {
		username = parts[0]
	}

	user, err := h.Repos.User.Create(req.Email, username, req.Password)
	if err != nil {
		log.Printf("[Handler] 创建用户失败: %v", err)
		utils.InternalServerError(c, "注册失败，请重试")
		return
	}

	token, err := h.signInToken(c, user)
	if err != nil {
		utils.InternalServerError(c, "注册失败，请重试")
		return
	}

	c.JSON(200, gin.H{
		"user":    user,
		"session": gin.H{"token": token},
	})
}

// Logout 登出
func (h *Handler) Logout(c *gin.Context) {
	c.SetCookie("token", "", -1, "/", "", false, true)

	// 清理 Session
	session := sessions.Default(c)
	session.Clear()
	session.Save()

	c.JSON(200, gin.H{})
}

// signIn 下发 JWT Cookie 并写入 Session
func (h *Handler) signIn(c *gin.Context, user *model.User) error {
	_, err := h.signInToken(c, user)
	return err
}

func (h *Handler) signInToken(c *gin.Context, user *model.User) (string, error) {
	token, err := middleware.GenerateToken(user.ID, user.Email, h.Config.AppSecret, h.Config.JWTExpiry)
	if err != nil {
		return "", err
	}
	c.SetCookie("token", token, int(h.Config.JWTExpiry.Seconds()), "/", "", false, true)

	session := sessions.Default(c)
	session.Set("userinfo", model.SessionUser{
		ID:       user.ID,
		Email:    user.Email,
		Username: user.Username,
	})
	session.Save()

	return token, nil
}
