package game

import (
	"math/rand/v2"

	"office-villain-be/internal/oracle"
)

// VoteOutcome 是一次计票的结果
type VoteOutcome struct {
	Votes  []Vote         `json:"votes"`
	Counts map[string]int `json:"counts"`
	// 得票最多的角色，按首次被投票的顺序排列
	Leaders      []string `json:"leaders"`
	EliminatedID string   `json:"eliminated_id,omitempty"`
}

// Hung 表示平票，无人被淘汰
func (vo VoteOutcome) Hung() bool {
	return vo.EliminatedID == ""
}

// TallyVotes 统计每个被投票者的票数：唯一最高票者被淘汰，最高票并列则无人淘汰
func TallyVotes(votes []Vote) VoteOutcome {
	counts := make(map[string]int)
	order := make([]string, 0, len(votes))

	for _, v := range votes {
		if _, seen := counts[v.VoteeID]; !seen {
			order = append(order, v.VoteeID)
		}
		counts[v.VoteeID]++
	}

	maxVotes := 0
	var leaders []string

	for _, id := range order {
		switch count := counts[id]; {
		case count > maxVotes:
			maxVotes = count
			leaders = []string{id}
		case count == maxVotes && maxVotes > 0:
			leaders = append(leaders, id)
		}
	}

	outcome := VoteOutcome{
		Votes:   votes,
		Counts:  counts,
		Leaders: leaders,
	}

	if len(leaders) == 1 {
		outcome.EliminatedID = leaders[0]
	}

	return outcome
}

// FilterVoteProposals 把 Oracle 给出的投票转换为按 ID 的投票。
// 投票者必须是存活的非玩家角色且每人只计一票，被投票者必须存活，不能投自己；
// 不合法的投票直接丢弃，不会补票。
func FilterVoteProposals(r *Roster, proposals []oracle.VoteProposal) []Vote {
	voted := make(map[string]bool, len(proposals))
	out := make([]Vote, 0, len(proposals))

	for _, p := range proposals {
		voter, ok := r.ByName(p.Voter)
		if !ok || !voter.IsAlive || voter.IsPlayer || voted[voter.ID] {
			continue
		}

		votee, ok := r.ByName(p.Votee)
		if !ok || !votee.IsAlive || votee.ID == voter.ID {
			continue
		}

		voted[voter.ID] = true
		out = append(out, Vote{
			VoterID: voter.ID,
			VoteeID: votee.ID,
			Reason:  p.Reason,
		})
	}

	return out
}

// FallbackVotes 在 Oracle 不可用时为每个存活的非玩家角色生成一票：
// 候选人为除自己和玩家所投对象之外的存活角色，反派优先投给同事。
func FallbackVotes(r *Roster, playerVote Vote, rng *rand.Rand) []Vote {
	alive := r.Alive()

	var potential []Character
	for _, c := range alive {
		if c.ID != playerVote.VoteeID {
			potential = append(potential, c)
		}
	}

	out := make([]Vote, 0, len(alive))

	for _, npc := range alive {
		if npc.IsPlayer {
			continue
		}

		var targets []Character
		for _, c := range potential {
			if c.ID == npc.ID {
				continue
			}

			switch npc.Role {
			case RoleVillain:
				if c.Role == RoleColleague {
					targets = append(targets, c)
				}
			case RoleColleague:
				targets = append(targets, c)
			}
		}

		if len(targets) == 0 && npc.Role == RoleVillain {
			for _, c := range potential {
				if c.ID != npc.ID {
					targets = append(targets, c)
				}
			}
		}

		if len(targets) == 0 {
			continue
		}

		target := targets[rng.IntN(len(targets))]
		out = append(out, Vote{
			VoterID: npc.ID,
			VoteeID: target.ID,
			Reason:  fallbackVoteReason,
		})
	}

	return out
}
