package game

import (
	"fmt"
	"net/url"

	"office-villain-be/internal/oracle"
)

// 角色身份，每局恰好一个反派
type Role int

const (
	RoleColleague Role = iota
	RoleVillain
)

func (r Role) String() string {
	switch r {
	case RoleVillain:
		return oracle.RoleVillainText
	case RoleColleague:
		return oracle.RoleColleagueText
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// Character 以 ID 作为唯一标识，Name 只用于展示和与 Oracle 交互
type Character struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Title     string `json:"title"`
	Role      Role   `json:"role"`
	IsPlayer  bool   `json:"is_player"`
	IsAlive   bool   `json:"is_alive"`
	AvatarRef string `json:"avatar_ref"`
}

func (c Character) Persona() oracle.Persona {
	return oracle.Persona{
		Name:     c.Name,
		Title:    c.Title,
		Role:     c.Role.String(),
		IsPlayer: c.IsPlayer,
		IsAlive:  c.IsAlive,
	}
}

// 对话日志中系统消息的发言者
const SpeakerSystem = "system"

type DialogueEntry struct {
	Speaker   string `json:"speaker"`
	SpeakerID string `json:"speaker_id,omitempty"`
	Message   string `json:"message"`
}

type Vote struct {
	VoterID string `json:"voter_id"`
	VoteeID string `json:"votee_id"`
	Reason  string `json:"reason,omitempty"`
}

func avatarRef(name string) string {
	return "https://i.pravatar.cc/150?u=" + url.QueryEscape(name)
}
