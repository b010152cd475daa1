package dto

import "time"

type CreateSessionResponse struct {
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionInfo 是会话的概要信息，不包含游戏内容
type SessionInfo struct {
	SessionID  string    `json:"session_id"`
	CreatedAt  time.Time `json:"created_at"`
	LastActive time.Time `json:"last_active"`
	Finished   bool      `json:"finished"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
