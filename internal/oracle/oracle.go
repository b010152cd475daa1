// Package oracle 定义游戏与叙事生成服务之间的契约。
//
// Oracle 只返回数据，从不修改游戏状态；所有角色都以名字来指代。
package oracle

import "context"

// Persona 是发送给 Oracle 的角色视图
type Persona struct {
	Name     string `json:"name"`
	Title    string `json:"title"`
	Role     string `json:"role"`
	IsPlayer bool   `json:"is_player"`
	IsAlive  bool   `json:"is_alive"`
}

type CharacterSeed struct {
	Name  string `json:"name" validate:"required"`
	Title string `json:"title" validate:"required"`
}

type SetupResult struct {
	Background string          `json:"companyBackground" validate:"required"`
	Characters []CharacterSeed `json:"characters" validate:"required,min=1,dive"`
}

type DayIntro struct {
	Incident  string            `json:"incident" validate:"required"`
	Dialogues map[string]string `json:"dialogues"`
}

// NightProposal 中 Eliminated 为空表示没有人被淘汰
type NightProposal struct {
	Eliminated string `json:"eliminated"`
	Reason     string `json:"reason"`
}

type VoteProposal struct {
	Voter  string `json:"voter" validate:"required"`
	Votee  string `json:"votee" validate:"required"`
	Reason string `json:"reason"`
}

// Line 是一条对话记录，Speaker 为角色名或 "system"
type Line struct {
	Speaker string `json:"speaker"`
	Message string `json:"message"`
}

type Oracle interface {
	SetupGame(ctx context.Context, size int) (*SetupResult, error)
	GenerateDayIntro(ctx context.Context, alive []Persona, day int) (*DayIntro, error)
	GetQuestionResponse(ctx context.Context, target Persona, question string) (string, error)
	GetEliminationFarewell(ctx context.Context, roster []Persona, eliminated string) (string, error)
	GetNightProposal(ctx context.Context, roster []Persona) (*NightProposal, error)
	GetVoteProposals(ctx context.Context, roster []Persona, playerVote VoteProposal, recent []Line) ([]VoteProposal, error)
}
