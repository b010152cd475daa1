package game

import (
	"math/rand/v2"

	"office-villain-be/internal/oracle"
)

// NightOutcome 中 TargetID 为空表示当晚无事发生
type NightOutcome struct {
	TargetID string `json:"target_id,omitempty"`
	Reason   string `json:"reason,omitempty"`
	// Oracle 的提议不可用时为 true
	Fallback bool `json:"fallback,omitempty"`
}

func (no NightOutcome) IsNoop() bool {
	return no.TargetID == ""
}

// NightEligible 夜晚可被淘汰的角色：存活、非玩家、身份为同事
func NightEligible(r *Roster) []Character {
	var out []Character
	for _, c := range r.Alive() {
		if c.IsPlayer {
			continue
		}

		switch c.Role {
		case RoleColleague:
			out = append(out, c)
		case RoleVillain:
		}
	}

	return out
}

// NeedsNightProposal 反派存活且有可淘汰目标时才需要询问 Oracle
func NeedsNightProposal(r *Roster) bool {
	return r.Villain().IsAlive && len(NightEligible(r)) > 0
}

// ResolveNight 校验 Oracle 的夜晚提议；提议缺失、出错或目标不合法时，
// 从可淘汰目标中均匀随机选出一名并附上通用理由。
func ResolveNight(r *Roster, proposal *oracle.NightProposal, proposalErr error, rng *rand.Rand) NightOutcome {
	if !NeedsNightProposal(r) {
		return NightOutcome{}
	}

	eligible := NightEligible(r)

	if proposalErr == nil && proposal != nil {
		if target, ok := r.ByName(proposal.Eliminated); ok {
			for _, c := range eligible {
				if c.ID == target.ID {
					reason := proposal.Reason
					if reason == "" {
						reason = fallbackNightReason(c.Name)
					}

					return NightOutcome{TargetID: c.ID, Reason: reason}
				}
			}
		}
	}

	target := eligible[rng.IntN(len(eligible))]

	return NightOutcome{
		TargetID: target.ID,
		Reason:   fallbackNightReason(target.Name),
		Fallback: true,
	}
}
