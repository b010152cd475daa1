package game

type Verdict int

const (
	VerdictContinue Verdict = iota
	VerdictWin
	VerdictLose
)

func (v Verdict) String() string {
	switch v {
	case VerdictWin:
		return "Win"
	case VerdictLose:
		return "Lose"
	case VerdictContinue:
		return "Continue"
	default:
		return "Unknown"
	}
}

func (v Verdict) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// EvaluateVerdict 在每次淘汰之后调用，不修改名单。
// 反派出局优先判定为胜利，即使玩家同时出局。
func EvaluateVerdict(r *Roster) Verdict {
	villainAlive, playerAlive := false, false
	aliveColleagues := 0

	for _, c := range r.Alive() {
		switch c.Role {
		case RoleVillain:
			villainAlive = true
		case RoleColleague:
			aliveColleagues++
		}

		if c.IsPlayer {
			playerAlive = true
		}
	}

	switch {
	case !villainAlive:
		return VerdictWin
	case !playerAlive:
		return VerdictLose
	case aliveColleagues <= 1:
		return VerdictLose
	default:
		return VerdictContinue
	}
}

// EndPhase 返回结论对应的结束阶段，继续游戏时 ok 为 false
func (v Verdict) EndPhase() (GamePhase, bool) {
	switch v {
	case VerdictWin:
		return PhaseEndWin, true
	case VerdictLose:
		return PhaseEndLose, true
	case VerdictContinue:
		return 0, false
	default:
		return 0, false
	}
}
