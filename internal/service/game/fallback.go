package game

import (
	"fmt"
	"strings"

	"office-villain-be/internal/oracle"
)

// Oracle 不可用时使用的固定内容
const (
	fallbackBackground = "This is the office of NextCode, a startup that delivers innovative IT solutions. " +
		"With a major project deadline approaching, a subtle tension is spreading through the team."
	fallbackIncident   = "Someone ate every snack in the shared office fridge!"
	fallbackDayLine    = "Ugh, my snacks..."
	fallbackAnswer     = "I'd rather not answer right now."
	fallbackFarewell   = "I have nothing more to say..."
	fallbackVoteReason = "Something about them just feels off."
)

var fallbackCharacters = []oracle.CharacterSeed{
	{Name: "Kim Minjun", Title: "Project Manager"},
	{Name: "Lee Seoyeon", Title: "UX/UI Designer"},
	{Name: "Park Dohyun", Title: "Backend Developer"},
	{Name: "Choi Jiwoo", Title: "Frontend Developer"},
	{Name: "Jung Hayoon", Title: "QA Engineer"},
	{Name: "Kang Taeho", Title: "Data Analyst"},
}

// fallbackSetup 返回固定的公司背景和 size 名角色，超出固定名单的部分按序号补齐
func fallbackSetup(size int) *oracle.SetupResult {
	chars := make([]oracle.CharacterSeed, 0, size)
	for i := 0; i < size; i++ {
		if i < len(fallbackCharacters) {
			chars = append(chars, fallbackCharacters[i])
			continue
		}

		chars = append(chars, oracle.CharacterSeed{
			Name:  fmt.Sprintf("Staff %d", i+1),
			Title: "Intern",
		})
	}

	return &oracle.SetupResult{
		Background: fallbackBackground,
		Characters: chars,
	}
}

// usableSetup 检查 Oracle 给出的名单能否直接使用：数量一致，名字和职位非空，名字不重复
func usableSetup(res *oracle.SetupResult, size int) bool {
	if res == nil || strings.TrimSpace(res.Background) == "" || len(res.Characters) != size {
		return false
	}

	names := make(map[string]struct{}, size)
	for _, c := range res.Characters {
		name := strings.TrimSpace(c.Name)
		if name == "" || strings.TrimSpace(c.Title) == "" {
			return false
		}

		if _, dup := names[name]; dup {
			return false
		}
		names[name] = struct{}{}
	}

	return true
}

func fallbackNightReason(name string) string {
	return "An anonymous tip-off about " + name + "'s poor performance was found."
}
