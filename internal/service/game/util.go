package game

import (
	"encoding/json"
	"errors"

	"github.com/google/uuid"
)

// 玩家操作被拒绝时返回的错误
var (
	ErrBusy              = errors.New("正在等待上一个请求完成")
	ErrWrongPhase        = errors.New("当前阶段不支持该请求")
	ErrInvalidTarget     = errors.New("只能选择存活的其他角色")
	ErrAlreadyQuestioned = errors.New("今天已经向该角色提过问")
	ErrNoSelection       = errors.New("尚未选择角色")
	ErrEmptyQuestion     = errors.New("问题不能为空")
)

func GenID() string {
	id, err := uuid.NewV7()
	if err != nil {
		panic("Failed to generate UUID: " + err.Error())
	}

	return id.String()
}

func mustMarshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic("Failed to marshal: " + err.Error())
	}

	return data
}
