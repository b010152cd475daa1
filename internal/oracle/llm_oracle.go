package oracle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"office-villain-be/internal/llm"

	"go.uber.org/zap"
)

// 与 Persona.Role 中使用的文本一致
const (
	RoleVillainText   = "Office Villain"
	RoleColleagueText = "Good Colleague"
)

// RecentDialogueLimit 是投票时提供给 Oracle 的最近对话条数
const RecentDialogueLimit = 20

var ErrEmptyResponse = errors.New("Oracle 返回了空内容")

type LLMOracle struct {
	provider llm.Provider
	timeout  time.Duration
	language string
}

func NewLLMOracle(provider llm.Provider, timeout time.Duration, language string) *LLMOracle {
	if language == "" {
		language = "English"
	}

	return &LLMOracle{
		provider: provider,
		timeout:  timeout,
		language: language,
	}
}

func (o *LLMOracle) systemPrompt(structured bool) string {
	var sb strings.Builder

	sb.WriteString("You are the narrator of 'Office Villain', a social deduction game set in an ordinary office. ")
	sb.WriteString("One employee is secretly the Office Villain; everyone else is a Good Colleague. ")
	fmt.Fprintf(&sb, "Write all game text in %s. Keep every line short and natural.", o.language)

	if structured {
		sb.WriteString("\n\nReturn your response in valid JSON format, following the provided output schema, without adding explanations or preambles.")
	}

	return sb.String()
}

func (o *LLMOracle) complete(ctx context.Context, step string, req llm.CompletionRequest) (string, error) {
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	started := time.Now()

	resp, err := o.provider.CompleteText(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%s: %w", step, err)
	}

	zap.L().Debug(
		"Oracle 调用完成",
		zap.String("step", step),
		zap.String("provider", resp.ProviderName),
		zap.Int("tokens", resp.TokensUsed),
		zap.Duration("elapsed", time.Since(started)),
	)

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", fmt.Errorf("%s: %w", step, ErrEmptyResponse)
	}

	return text, nil
}

func (o *LLMOracle) completeJSON(ctx context.Context, step, prompt string, schema map[string]any) (string, error) {
	return o.complete(ctx, step, llm.CompletionRequest{
		Prompt:         prompt,
		SystemPrompt:   o.systemPrompt(true),
		Temperature:    0.9,
		JSONOutput:     true,
		ResponseSchema: schema,
	})
}

func (o *LLMOracle) completeText(ctx context.Context, step, prompt string) (string, error) {
	return o.complete(ctx, step, llm.CompletionRequest{
		Prompt:       prompt,
		SystemPrompt: o.systemPrompt(false),
		Temperature:  0.9,
	})
}

func (o *LLMOracle) SetupGame(ctx context.Context, size int) (*SetupResult, error) {
	prompt := fmt.Sprintf(`Create the setting for a new game of 'Office Villain'. The game needs %d characters.
Generate %d characters with names and job titles you would find in an ordinary company office. Every name must be unique.
Also write a one-paragraph background story about the fictional company where the game takes place.`, size, size)

	raw, err := o.completeJSON(ctx, "setup", prompt, setupSchema)
	if err != nil {
		return nil, err
	}

	var result SetupResult
	if err := decodeStrict(raw, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

func (o *LLMOracle) GenerateDayIntro(ctx context.Context, alive []Persona, day int) (*DayIntro, error) {
	prompt := fmt.Sprintf(`It is the morning of day %d of the Office Villain game. Generate one new incident that happened in the office and each character's first line about it.
- Incident: a minor event that hurts morale or disrupts work (e.g. the coffee machine broke, an important file was renamed).
- Characters: %s
- Office Villain: %s

The villain's line should subtly shift suspicion onto someone else or hint that they enjoy the situation.
Everyone else reacts naturally: ordinary, annoyed, or looking for a fix.
The "dialogues" object must have exactly one entry per character, keyed by the character's name.`,
		day, describeCharacters(alive), villainName(alive))

	raw, err := o.completeJSON(ctx, "day_intro", prompt, dayIntroSchema(alive))
	if err != nil {
		return nil, err
	}

	var result DayIntro
	if err := decodeStrict(raw, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

func (o *LLMOracle) GetQuestionResponse(ctx context.Context, target Persona, question string) (string, error) {
	prompt := fmt.Sprintf(`In the Office Villain game, the player asked %s (%s) the following question.
Question: %q
%s's role is '%s'. Stay true to that role and answer briefly and naturally.
If the role is '%s', lie cleverly or change the subject to avoid suspicion.
If the role is '%s', answer honestly with what they know or think.
Reply with the answer only.`,
		target.Name, target.Title, question, target.Name, target.Role, RoleVillainText, RoleColleagueText)

	return o.completeText(ctx, "question", prompt)
}

func (o *LLMOracle) GetEliminationFarewell(ctx context.Context, roster []Persona, eliminated string) (string, error) {
	role := ""
	for _, p := range roster {
		if p.Name == eliminated {
			role = p.Role
		}
	}

	prompt := fmt.Sprintf(`It is voting time in the Office Villain game. %s received the most votes and is about to be fired.
%s's role is '%s'. %s is the Office Villain.
Write a short final remark from %s: something fitting the role, either aggrieved or meaningfully cryptic.
Reply with the remark only.`,
		eliminated, eliminated, role, villainName(roster), eliminated)

	return o.completeText(ctx, "farewell", prompt)
}

func (o *LLMOracle) GetNightProposal(ctx context.Context, roster []Persona) (*NightProposal, error) {
	var targets []string
	for _, p := range roster {
		if p.IsAlive && !p.IsPlayer && p.Role == RoleColleagueText {
			targets = append(targets, p.Name)
		}
	}

	prompt := fmt.Sprintf(`Night falls in the Office Villain game. The Office Villain (%s) picks one good colleague to get fired.
- Candidates: %s
Choose exactly one of the candidates and write one plausible sentence explaining why they were fired.
"eliminated" must be one of the candidate names.`,
		villainName(roster), strings.Join(targets, ", "))

	raw, err := o.completeJSON(ctx, "night", prompt, nightSchema)
	if err != nil {
		return nil, err
	}

	var result NightProposal
	if err := decodeJSON(raw, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

func (o *LLMOracle) GetVoteProposals(ctx context.Context, roster []Persona, playerVote VoteProposal, recent []Line) ([]VoteProposal, error) {
	var alive, npcs []string
	for _, p := range roster {
		if !p.IsAlive {
			continue
		}

		kind := "NPC"
		if p.IsPlayer {
			kind = "player"
		} else {
			npcs = append(npcs, p.Name)
		}
		alive = append(alive, fmt.Sprintf("%s(%s, %s)", p.Name, p.Title, kind))
	}

	if len(recent) > RecentDialogueLimit {
		recent = recent[len(recent)-RecentDialogueLimit:]
	}

	lines := make([]string, 0, len(recent))
	for _, l := range recent {
		lines = append(lines, l.Speaker+": "+l.Message)
	}

	villain := villainName(roster)

	prompt := fmt.Sprintf(`It is voting time in the Office Villain game.
- Living characters: %s
- Office Villain: %s
- The player (%s) voted for %s.
- Recent conversation:
%s

Decide whom each NPC other than the player (%s) votes for.
- Each character must vote for a living character other than themselves.
- Good colleagues vote for whoever seems reasonably suspicious based on the conversation.
- The Office Villain (%s) deflects suspicion or sows discord among colleagues with their vote.
- Include a brief reason for each vote.`,
		strings.Join(alive, ", "), villain, playerVote.Voter, playerVote.Votee,
		strings.Join(lines, "\n"), strings.Join(npcs, ", "), villain)

	raw, err := o.completeJSON(ctx, "votes", prompt, votesSchema)
	if err != nil {
		return nil, err
	}

	var result []VoteProposal
	if err := decodeJSON(raw, &result); err != nil {
		return nil, err
	}

	kept, dropped := keepValid(result)
	if dropped > 0 {
		zap.L().Warn(
			"丢弃缺少字段的投票提案",
			zap.Int("dropped", dropped),
			zap.Int("kept", len(kept)),
		)
	}

	return kept, nil
}

func describeCharacters(list []Persona) string {
	parts := make([]string, 0, len(list))
	for _, p := range list {
		parts = append(parts, fmt.Sprintf("%s(%s)", p.Name, p.Title))
	}

	return strings.Join(parts, ", ")
}

func villainName(list []Persona) string {
	for _, p := range list {
		if p.Role == RoleVillainText {
			return p.Name
		}
	}

	return "unknown"
}
