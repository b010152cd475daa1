package game

import "fmt"

// 游戏分为以下阶段：
// 1. 欢迎（Welcome）：等待玩家开始
// 2. 准备（Setup）：生成角色和公司背景，分配反派和玩家
// 3. 白天开场（DayIntro）：生成当天的事件和每个角色的第一句话
// 4. 讨论（DayDiscussion）：玩家每天可以向每个角色提问一次
// 5. 投票（Voting）：玩家投票，其余角色的票由 Oracle 给出
// 6. 投票结果（VoteResult）：判断胜负
// 7. 夜晚（Night）：反派淘汰一名同事
// 8. 结束（EndWin / EndLose）：等待重新开始
type GamePhase int

const (
	PhaseWelcome GamePhase = iota
	PhaseSetup
	PhaseDayIntro
	PhaseDayDiscussion
	PhaseVoting
	PhaseVoteResult
	PhaseNight
	PhaseEndWin
	PhaseEndLose
)

func (p GamePhase) String() string {
	switch p {
	case PhaseWelcome:
		return "Welcome"
	case PhaseSetup:
		return "Setup"
	case PhaseDayIntro:
		return "DayIntro"
	case PhaseDayDiscussion:
		return "DayDiscussion"
	case PhaseVoting:
		return "Voting"
	case PhaseVoteResult:
		return "VoteResult"
	case PhaseNight:
		return "Night"
	case PhaseEndWin:
		return "EndWin"
	case PhaseEndLose:
		return "EndLose"
	default:
		return fmt.Sprintf("GamePhase(%d)", int(p))
	}
}

func (p GamePhase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *GamePhase) UnmarshalText(text []byte) error {
	for candidate := PhaseWelcome; candidate <= PhaseEndLose; candidate++ {
		if candidate.String() == string(text) {
			*p = candidate
			return nil
		}
	}

	return fmt.Errorf("未知的游戏阶段: %q", string(text))
}

func (p GamePhase) IsTerminal() bool {
	return p == PhaseEndWin || p == PhaseEndLose
}

// CanTransitionTo 描述合法的阶段切换；任何阶段都可以通过重新开始回到欢迎阶段
func (p GamePhase) CanTransitionTo(target GamePhase) bool {
	if target == PhaseWelcome {
		return true
	}

	switch p {
	case PhaseWelcome:
		return target == PhaseSetup
	case PhaseSetup:
		return target == PhaseDayIntro
	case PhaseDayIntro:
		return target == PhaseDayDiscussion
	case PhaseDayDiscussion:
		return target == PhaseVoting
	case PhaseVoting:
		return target == PhaseVoteResult
	case PhaseVoteResult:
		return target == PhaseNight || target.IsTerminal()
	case PhaseNight:
		return target == PhaseDayIntro || target.IsTerminal()
	case PhaseEndWin, PhaseEndLose:
		return false
	default:
		return false
	}
}
