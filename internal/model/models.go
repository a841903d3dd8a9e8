package model

import (
	"time"

	"github.com/lib/pq"
)

// 影片状态：三选一，直接写入 status 列
const (
	StatusToWatch  = "to-watch"
	StatusWatched  = "watched"
	StatusRejected = "rejected"
)

// ValidStatus 校验影片状态取值
func ValidStatus(s string) bool {
	return s == StatusToWatch || s == StatusWatched || s == StatusRejected
}

// User 用户模型
type User struct {
	ID           int       `json:"id" db:"id"`
	Email        string    `json:"email" db:"email" gorm:"unique"`
	Username     string    `json:"username" db:"username"`
	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// SessionUser 专门用于 Session 存储的用户信息结构
type SessionUser struct {
	ID       int
	Email    string
	Username string
}

// UserFilm 用户影片记录
type UserFilm struct {
	ID           int            `json:"id" db:"id"`
	UserID       int            `json:"user_id" db:"user_id" gorm:"index"`
	Title        string         `json:"title" db:"title"`
	Year         int            `json:"year" db:"year"`
	Description  string         `json:"description" db:"description"`
	Genres       pq.StringArray `json:"genres" db:"genres" gorm:"type:text[]"`
	Actors       pq.StringArray `json:"actors" db:"actors" gorm:"type:text[]"`
	Director     string         `json:"director" db:"director"`
	Status       string         `json:"status" db:"status"`
	GenerationID *int           `json:"generation_id" db:"generation_id"`
	CreatedAt    time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at" db:"updated_at"`
}

// FilmStatusLog 影片状态变更日志（只追加，应用内不回读）
type FilmStatusLog struct {
	ID              int       `json:"id" db:"id"`
	FilmID          int       `json:"film_id" db:"film_id"`
	UserID          int       `json:"user_id" db:"user_id"`
	PrevStatus      string    `json:"prev_status" db:"prev_status"`
	NextStatus      string    `json:"next_status" db:"next_status"`
	StatusChangedAt time.Time `json:"status_changed_at" db:"status_changed_at"`
}

// GenerationLog 推荐生成日志，每次生成请求一行
type GenerationLog struct {
	ID                    int       `json:"id" db:"id"`
	UserID                int       `json:"user_id" db:"user_id"`
	CriteriaHash          string    `json:"criteria_hash" db:"criteria_hash"`
	GeneratedCount        int       `json:"generated_count" db:"generated_count"`
	GenerationDuration    int64     `json:"generation_duration" db:"generation_duration"` // 毫秒
	Model                 string    `json:"model" db:"model"`
	MarkedAsToWatchCount  *int      `json:"marked_as_to_watch_count" db:"marked_as_to_watch_count"`
	MarkedAsWatchedCount  *int      `json:"marked_as_watched_count" db:"marked_as_watched_count"`
	MarkedAsRejectedCount *int      `json:"marked_as_rejected_count" db:"marked_as_rejected_count"`
	CreatedAt             time.Time `json:"created_at" db:"created_at"`
	UpdatedAt             time.Time `json:"updated_at" db:"updated_at"`
}

// GenerationErrorLog 推荐生成失败日志
type GenerationErrorLog struct {
	ID           int       `json:"id" db:"id"`
	UserID       int       `json:"user_id" db:"user_id"`
	ErrorMessage string    `json:"error_message" db:"error_message"`
	ErrorCode    string    `json:"error_code" db:"error_code"`
	CriteriaHash string    `json:"criteria_hash" db:"criteria_hash"`
	Model        string    `json:"model" db:"model"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// UserPreference 用户偏好，每个用户至多一行，作为推荐条件的兜底来源
type UserPreference struct {
	ID        int            `json:"id" db:"id"`
	UserID    int            `json:"user_id" db:"user_id" gorm:"uniqueIndex"`
	Actors    pq.StringArray `json:"actors" db:"actors" gorm:"type:text[]"`
	Directors pq.StringArray `json:"directors" db:"directors" gorm:"type:text[]"`
	Genres    pq.StringArray `json:"genres" db:"genres" gorm:"type:text[]"`
	YearFrom  *int           `json:"year_from" db:"year_from"`
	YearTo    *int           `json:"year_to" db:"year_to"`
}
