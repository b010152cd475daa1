package game

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"office-villain-be/internal/oracle"
)

var ErrRosterInvariant = errors.New("角色名单不满足约束")

// Roster 保存一局游戏的全部角色，顺序在创建后固定。
// 被淘汰的角色仍留在名单中，只是 IsAlive 为 false。
type Roster struct {
	chars []*Character
	byID  map[string]*Character
}

// AssignRoles 均匀随机选出反派下标，玩家下标从其余位置中均匀选出，两者必然不同
func AssignRoles(n int, rng *rand.Rand) (villainIdx, playerIdx int) {
	villainIdx = rng.IntN(n)
	playerIdx = (villainIdx + 1 + rng.IntN(n-1)) % n

	return villainIdx, playerIdx
}

func NewRoster(seeds []oracle.CharacterSeed, villainIdx, playerIdx int, newID func() string) (*Roster, error) {
	if len(seeds) < 2 {
		return nil, fmt.Errorf("%w: 至少需要两名角色，实际 %d", ErrRosterInvariant, len(seeds))
	}

	if villainIdx < 0 || villainIdx >= len(seeds) || playerIdx < 0 || playerIdx >= len(seeds) {
		return nil, fmt.Errorf("%w: 下标越界 villain=%d player=%d", ErrRosterInvariant, villainIdx, playerIdx)
	}

	r := &Roster{
		chars: make([]*Character, 0, len(seeds)),
		byID:  make(map[string]*Character, len(seeds)),
	}

	for i, seed := range seeds {
		role := RoleColleague
		if i == villainIdx {
			role = RoleVillain
		}

		c := &Character{
			ID:        newID(),
			Name:      strings.TrimSpace(seed.Name),
			Title:     strings.TrimSpace(seed.Title),
			Role:      role,
			IsPlayer:  i == playerIdx,
			IsAlive:   true,
			AvatarRef: avatarRef(seed.Name),
		}

		r.chars = append(r.chars, c)
		r.byID[c.ID] = c
	}

	if err := r.Validate(); err != nil {
		return nil, err
	}

	return r, nil
}

// Validate 检查：恰好一个反派、恰好一个玩家、ID 与名字均唯一且非空
func (r *Roster) Validate() error {
	villains, players := 0, 0
	names := make(map[string]struct{}, len(r.chars))

	for _, c := range r.chars {
		switch c.Role {
		case RoleVillain:
			villains++
		case RoleColleague:
		default:
			return fmt.Errorf("%w: 未知身份 %v", ErrRosterInvariant, c.Role)
		}

		if c.IsPlayer {
			players++
		}

		if c.ID == "" || c.Name == "" {
			return fmt.Errorf("%w: 角色 ID 或名字为空", ErrRosterInvariant)
		}

		if _, dup := names[c.Name]; dup {
			return fmt.Errorf("%w: 名字重复 %q", ErrRosterInvariant, c.Name)
		}
		names[c.Name] = struct{}{}
	}

	if villains != 1 {
		return fmt.Errorf("%w: 反派数量为 %d", ErrRosterInvariant, villains)
	}

	if players != 1 {
		return fmt.Errorf("%w: 玩家数量为 %d", ErrRosterInvariant, players)
	}

	if len(r.byID) != len(r.chars) {
		return fmt.Errorf("%w: 角色 ID 重复", ErrRosterInvariant)
	}

	return nil
}

func (r *Roster) Len() int {
	return len(r.chars)
}

// Characters 返回按名单顺序排列的副本
func (r *Roster) Characters() []Character {
	out := make([]Character, 0, len(r.chars))
	for _, c := range r.chars {
		out = append(out, *c)
	}

	return out
}

func (r *Roster) Alive() []Character {
	out := make([]Character, 0, len(r.chars))
	for _, c := range r.chars {
		if c.IsAlive {
			out = append(out, *c)
		}
	}

	return out
}

func (r *Roster) Get(id string) (Character, bool) {
	c, ok := r.byID[id]
	if !ok {
		return Character{}, false
	}

	return *c, true
}

// ByName 用于把 Oracle 返回的名字解析为角色
func (r *Roster) ByName(name string) (Character, bool) {
	name = strings.TrimSpace(name)
	for _, c := range r.chars {
		if c.Name == name {
			return *c, true
		}
	}

	return Character{}, false
}

func (r *Roster) Player() Character {
	for _, c := range r.chars {
		if c.IsPlayer {
			return *c
		}
	}

	return Character{}
}

func (r *Roster) Villain() Character {
	for _, c := range r.chars {
		if c.Role == RoleVillain {
			return *c
		}
	}

	return Character{}
}

// IsSelectable 玩家只能选择存活的非玩家角色
func (r *Roster) IsSelectable(id string) bool {
	c, ok := r.byID[id]
	return ok && c.IsAlive && !c.IsPlayer
}

func (r *Roster) Personas() []oracle.Persona {
	out := make([]oracle.Persona, 0, len(r.chars))
	for _, c := range r.chars {
		out = append(out, c.Persona())
	}

	return out
}

func (r *Roster) AlivePersonas() []oracle.Persona {
	alive := r.Alive()
	out := make([]oracle.Persona, 0, len(alive))
	for _, c := range alive {
		out = append(out, c.Persona())
	}

	return out
}

// eliminate 将角色标记为淘汰，只允许状态机调用；已淘汰或不存在时返回 false
func (r *Roster) eliminate(id string) bool {
	c, ok := r.byID[id]
	if !ok || !c.IsAlive {
		return false
	}

	c.IsAlive = false

	return true
}
