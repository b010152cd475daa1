package game

type StartGameRequest struct{}

type SelectCharacterRequest struct {
	CharacterID string `json:"character_id"`
}

// AskQuestionRequest 未指定 CharacterID 时向当前选中的角色提问
type AskQuestionRequest struct {
	Question    string `json:"question"`
	CharacterID string `json:"character_id,omitempty"`
}

type BeginVotingRequest struct{}

type ConfirmVoteRequest struct{}

// TimeoutRequest 是展示延迟结束后投递回状态机的内部事件
type TimeoutRequest struct {
	Epoch uint64
	Seq   uint64
	Stage GamePhase
	Tag   string
}

// OracleResult 是异步 Oracle 调用的结果，由事件循环统一应用
type OracleResult struct {
	Epoch uint64
	Seq   uint64
	Step  string
	Value any
	Err   error
}

// AttachRequest 把新的客户端连接绑定到会话，旧连接的响应通道会被关闭
type AttachRequest struct {
	RespCh chan ResponseWrapper
}

type DetachRequest struct {
	RespCh chan ResponseWrapper
}

type GameStateNotification struct {
	Stage      GamePhase `json:"stage"`
	Day        int       `json:"day"`
	Busy       bool      `json:"busy"`
	SelectedID string    `json:"selected_id,omitempty"`
	Questioned []string  `json:"questioned"`
}

// CharacterView 是发给客户端的角色信息，未公开的身份为空
type CharacterView struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Title     string `json:"title"`
	Role      string `json:"role,omitempty"`
	IsPlayer  bool   `json:"is_player"`
	IsAlive   bool   `json:"is_alive"`
	AvatarRef string `json:"avatar_ref"`
}

type RosterNotification struct {
	Characters []CharacterView `json:"characters"`
}

// DialogueNotification 只携带新追加的条目
type DialogueNotification struct {
	Entries []DialogueEntry `json:"entries"`
}

type SelectionNotification struct {
	SelectedID string `json:"selected_id"`
}

type VoteView struct {
	VoterID   string `json:"voter_id"`
	VoterName string `json:"voter_name"`
	VoteeID   string `json:"votee_id"`
	VoteeName string `json:"votee_name"`
	Reason    string `json:"reason,omitempty"`
}

type VoteResultNotification struct {
	Votes        []VoteView     `json:"votes"`
	Counts       map[string]int `json:"counts"`
	EliminatedID string         `json:"eliminated_id,omitempty"`
	Hung         bool           `json:"hung"`
}

type GameResultNotification struct {
	Verdict     Verdict         `json:"verdict"`
	Stage       GamePhase       `json:"stage"`
	Day         int             `json:"day"`
	VillainID   string          `json:"villain_id"`
	VillainName string          `json:"villain_name"`
	Characters  []CharacterView `json:"characters"`
}

// SnapshotNotification 是完整的公开状态，用于重连后恢复界面
type SnapshotNotification struct {
	State      GameStateNotification `json:"state"`
	Background string                `json:"background"`
	Characters []CharacterView       `json:"characters"`
	Dialogue   []DialogueEntry       `json:"dialogue"`
}
