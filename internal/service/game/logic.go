package game

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"office-villain-be/internal/oracle"
)

type StageHandler interface {
	Stage() GamePhase

	OnEnter(ctx *GameContext)
	OnHandle(ctx *GameContext, req RequestWrapper) error
	OnExit(ctx *GameContext)

	SetOnSwitch(func(nextStage GamePhase))
}

// 内部事件的标签，用于区分同一阶段中的多个异步步骤
const (
	stepSetup    = "setup"
	stepDayIntro = "day_intro"
	stepQuestion = "question"
	stepVotes    = "votes"
	stepFarewell = "farewell"
	stepNight    = "night"

	tagDwell    = "dwell"
	tagLines    = "lines"
	tagReveal   = "reveal"
	tagFarewell = "farewell_done"
	tagToNight  = "to_night"
	tagMorning  = "morning"
)

// baseHandler 提供切换回调和空的 OnExit
type baseHandler struct {
	onSwitch func(GamePhase)
}

func (bh *baseHandler) OnExit(ctx *GameContext) {}

func (bh *baseHandler) SetOnSwitch(onSwitch func(GamePhase)) {
	bh.onSwitch = onSwitch
}

// 欢迎阶段：清空上一局的全部状态，等待玩家开始
type welcomeStageHandler struct {
	baseHandler
}

func NewWelcomeStageHandler() *welcomeStageHandler {
	return &welcomeStageHandler{}
}

func (wsh *welcomeStageHandler) Stage() GamePhase {
	return PhaseWelcome
}

func (wsh *welcomeStageHandler) OnEnter(ctx *GameContext) {
	ctx.reset()
}

func (wsh *welcomeStageHandler) OnHandle(ctx *GameContext, req RequestWrapper) error {
	if req := TryUnwrapStartGameRequest(req); req != nil {
		wsh.onSwitch(PhaseSetup)
		return nil
	}

	return ErrWrongPhase
}

// 准备阶段：向 Oracle 请求公司背景和角色，随后分配反派和玩家
type setupStageHandler struct {
	baseHandler
}

func NewSetupStageHandler() *setupStageHandler {
	return &setupStageHandler{}
}

func (ssh *setupStageHandler) Stage() GamePhase {
	return PhaseSetup
}

func (ssh *setupStageHandler) OnEnter(ctx *GameContext) {
	size, orc := ctx.deps.RosterSize, ctx.Oracle()

	ctx.Ask(stepSetup, func(c context.Context) (any, error) {
		return orc.SetupGame(c, size)
	})
}

func (ssh *setupStageHandler) OnHandle(ctx *GameContext, req RequestWrapper) error {
	if res := TryUnwrapOracleResult(req); res != nil && res.Step == stepSetup {
		size := ctx.deps.RosterSize

		setup, _ := res.Value.(*oracle.SetupResult)
		if res.Err != nil || !usableSetup(setup, size) {
			zap.L().Warn(
				"Oracle 生成的角色不可用，使用默认角色",
				zap.String("session_id", ctx.SessionID),
				zap.Error(res.Err),
			)
			setup = fallbackSetup(size)
		}

		villainIdx, playerIdx := ctx.deps.AssignRoles(size, ctx.Rng())

		roster, err := NewRoster(setup.Characters, villainIdx, playerIdx, ctx.deps.NewID)
		if err != nil {
			ctx.Fail(err)
			return err
		}

		ctx.Roster = roster
		ctx.Background = strings.TrimSpace(setup.Background)
		ctx.NotifyRoster()

		player := roster.Player()
		ctx.AppendSystem(ctx.Background)
		ctx.AppendSystem(fmt.Sprintf(
			"You are %s %s. Your role is '%s'. Find the office villain.",
			player.Title, player.Name, player.Role,
		))

		ctx.SetTimeout(ctx.Pacing().SetupDwell, tagDwell)

		return nil
	}

	if req := TryUnwrapTimeoutRequest(req); req != nil && req.Tag == tagDwell {
		ssh.onSwitch(PhaseDayIntro)
		return nil
	}

	return ErrWrongPhase
}

// 白天开场：清空当天的提问记录，生成事件和每个角色的第一句话
type dayIntroStageHandler struct {
	baseHandler

	dialogues map[string]string
}

func NewDayIntroStageHandler() *dayIntroStageHandler {
	return &dayIntroStageHandler{}
}

func (dsh *dayIntroStageHandler) Stage() GamePhase {
	return PhaseDayIntro
}

func (dsh *dayIntroStageHandler) OnEnter(ctx *GameContext) {
	ctx.Questioned = make(map[string]bool)
	ctx.SelectedID = ""

	ctx.AppendSystem(fmt.Sprintf("=== Day %d ===", ctx.Day))

	alive, day, orc := ctx.Roster.AlivePersonas(), ctx.Day, ctx.Oracle()

	ctx.Ask(stepDayIntro, func(c context.Context) (any, error) {
		return orc.GenerateDayIntro(c, alive, day)
	})
}

func (dsh *dayIntroStageHandler) OnHandle(ctx *GameContext, req RequestWrapper) error {
	if res := TryUnwrapOracleResult(req); res != nil && res.Step == stepDayIntro {
		intro, _ := res.Value.(*oracle.DayIntro)
		if res.Err != nil || intro == nil {
			zap.L().Warn(
				"Oracle 生成白天开场失败，使用默认内容",
				zap.String("session_id", ctx.SessionID),
				zap.Error(res.Err),
			)
			intro = &oracle.DayIntro{}
		}

		incident := strings.TrimSpace(intro.Incident)
		if incident == "" {
			incident = fallbackIncident
		}

		dsh.dialogues = intro.Dialogues
		ctx.AppendSystem("Incident: " + incident)
		ctx.SetTimeout(ctx.Pacing().DayIntro, tagLines)

		return nil
	}

	if req := TryUnwrapTimeoutRequest(req); req != nil && req.Tag == tagLines {
		// 按名单顺序为每个存活角色追加一句话，未知名字的台词直接忽略
		for _, c := range ctx.Roster.Alive() {
			line := strings.TrimSpace(dsh.dialogues[c.Name])
			if line == "" {
				line = fallbackDayLine
			}

			ctx.AppendLine(c, line)
		}

		dsh.onSwitch(PhaseDayDiscussion)

		return nil
	}

	return ErrWrongPhase
}

// selectCharacter 讨论和投票阶段共用的选择逻辑
func selectCharacter(ctx *GameContext, req *SelectCharacterRequest) error {
	if !ctx.Roster.IsSelectable(req.CharacterID) {
		return ErrInvalidTarget
	}

	ctx.SelectedID = req.CharacterID
	ctx.SendResp(WrapResponse(RESP_SELECTION, SelectionNotification{SelectedID: req.CharacterID}))

	return nil
}

// 讨论阶段：玩家每天可以向每个角色提一个问题，也可以直接进入投票
type discussionStageHandler struct {
	baseHandler

	askedID string
}

func NewDiscussionStageHandler() *discussionStageHandler {
	return &discussionStageHandler{}
}

func (dsh *discussionStageHandler) Stage() GamePhase {
	return PhaseDayDiscussion
}

func (dsh *discussionStageHandler) OnEnter(ctx *GameContext) {}

func (dsh *discussionStageHandler) OnHandle(ctx *GameContext, req RequestWrapper) error {
	if req := TryUnwrapSelectCharacterRequest(req); req != nil {
		return selectCharacter(ctx, req)
	}

	if req := TryUnwrapAskQuestionRequest(req); req != nil {
		return dsh.ask(ctx, req)
	}

	if res := TryUnwrapOracleResult(req); res != nil && res.Step == stepQuestion {
		target, ok := ctx.Roster.Get(dsh.askedID)
		if !ok {
			return fmt.Errorf("%w: %s", ErrInvalidTarget, dsh.askedID)
		}

		answer, _ := res.Value.(string)
		answer = strings.TrimSpace(answer)
		if res.Err != nil || answer == "" {
			zap.L().Warn(
				"Oracle 回答问题失败，使用默认回答",
				zap.String("session_id", ctx.SessionID),
				zap.String("target", target.Name),
				zap.Error(res.Err),
			)
			answer = fallbackAnswer
		}

		ctx.AppendLine(target, answer)

		return nil
	}

	if req := TryUnwrapBeginVotingRequest(req); req != nil {
		dsh.onSwitch(PhaseVoting)
		return nil
	}

	return ErrWrongPhase
}

func (dsh *discussionStageHandler) ask(ctx *GameContext, req *AskQuestionRequest) error {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return ErrEmptyQuestion
	}

	targetID := req.CharacterID
	if targetID == "" {
		targetID = ctx.SelectedID
	}

	if targetID == "" {
		return ErrNoSelection
	}

	if !ctx.Roster.IsSelectable(targetID) {
		return ErrInvalidTarget
	}

	if ctx.Questioned[targetID] {
		return ErrAlreadyQuestioned
	}

	target, _ := ctx.Roster.Get(targetID)

	// 提问一旦发出就计入当天的提问记录，即使 Oracle 之后失败
	ctx.Questioned[targetID] = true
	dsh.askedID = targetID

	ctx.AppendSystem(fmt.Sprintf("You asked %s: %s", target.Name, question))

	persona, orc := target.Persona(), ctx.Oracle()

	ctx.Ask(stepQuestion, func(c context.Context) (any, error) {
		return orc.GetQuestionResponse(c, persona, question)
	})

	return nil
}

// 投票阶段：玩家选择并确认一票，其余角色的票由 Oracle 给出
type votingStageHandler struct {
	baseHandler

	playerVote Vote
	outcome    VoteOutcome
	eliminated Character
}

func NewVotingStageHandler() *votingStageHandler {
	return &votingStageHandler{}
}

func (vsh *votingStageHandler) Stage() GamePhase {
	return PhaseVoting
}

func (vsh *votingStageHandler) OnEnter(ctx *GameContext) {
	ctx.SelectedID = ""
	ctx.SendResp(WrapResponse(RESP_SELECTION, SelectionNotification{}))
}

func (vsh *votingStageHandler) OnHandle(ctx *GameContext, req RequestWrapper) error {
	if req := TryUnwrapSelectCharacterRequest(req); req != nil {
		return selectCharacter(ctx, req)
	}

	if req := TryUnwrapConfirmVoteRequest(req); req != nil {
		return vsh.confirm(ctx)
	}

	if res := TryUnwrapOracleResult(req); res != nil {
		switch res.Step {
		case stepVotes:
			vsh.applyVotes(ctx, res)
			return nil
		case stepFarewell:
			farewell, _ := res.Value.(string)
			farewell = strings.TrimSpace(farewell)
			if res.Err != nil || farewell == "" {
				zap.L().Warn(
					"Oracle 生成告别语失败，使用默认内容",
					zap.String("session_id", ctx.SessionID),
					zap.Error(res.Err),
				)
				farewell = fallbackFarewell
			}

			ctx.AppendLine(vsh.eliminated, farewell)
			ctx.SetTimeout(ctx.Pacing().VoteFarewell, tagFarewell)

			return nil
		}
	}

	if req := TryUnwrapTimeoutRequest(req); req != nil {
		switch req.Tag {
		case tagReveal:
			vsh.reveal(ctx)
			return nil
		case tagFarewell:
			vsh.onSwitch(PhaseVoteResult)
			return nil
		}
	}

	return ErrWrongPhase
}

func (vsh *votingStageHandler) confirm(ctx *GameContext) error {
	if ctx.SelectedID == "" {
		return ErrNoSelection
	}

	if !ctx.Roster.IsSelectable(ctx.SelectedID) {
		return ErrInvalidTarget
	}

	player := ctx.Roster.Player()
	votee, _ := ctx.Roster.Get(ctx.SelectedID)

	vsh.playerVote = Vote{VoterID: player.ID, VoteeID: votee.ID}

	roster, orc := ctx.Roster.Personas(), ctx.Oracle()
	recent := ctx.RecentLines(oracle.RecentDialogueLimit)
	proposal := oracle.VoteProposal{Voter: player.Name, Votee: votee.Name}

	ctx.Ask(stepVotes, func(c context.Context) (any, error) {
		return orc.GetVoteProposals(c, roster, proposal, recent)
	})

	return nil
}

func (vsh *votingStageHandler) applyVotes(ctx *GameContext, res *OracleResult) {
	var npcVotes []Vote

	proposals, _ := res.Value.([]oracle.VoteProposal)
	if res.Err != nil {
		zap.L().Warn(
			"Oracle 生成投票失败，使用随机投票",
			zap.String("session_id", ctx.SessionID),
			zap.Error(res.Err),
		)
		npcVotes = FallbackVotes(ctx.Roster, vsh.playerVote, ctx.Rng())
	} else {
		npcVotes = FilterVoteProposals(ctx.Roster, proposals)
		if dropped := len(proposals) - len(npcVotes); dropped > 0 {
			zap.L().Info(
				"丢弃不合法的投票",
				zap.String("session_id", ctx.SessionID),
				zap.Int("dropped", dropped),
			)
		}
	}

	votes := append([]Vote{vsh.playerVote}, npcVotes...)
	vsh.outcome = TallyVotes(votes)
	ctx.LastVote = &vsh.outcome

	ctx.AppendSystem("=== Vote results ===")

	views := make([]VoteView, 0, len(votes))
	for _, v := range votes {
		voter, _ := ctx.Roster.Get(v.VoterID)
		votee, _ := ctx.Roster.Get(v.VoteeID)

		if v.Reason != "" {
			ctx.AppendSystem(fmt.Sprintf("%s -> %s (reason: %s)", voter.Name, votee.Name, v.Reason))
		} else {
			ctx.AppendSystem(fmt.Sprintf("%s -> %s", voter.Name, votee.Name))
		}

		views = append(views, VoteView{
			VoterID:   voter.ID,
			VoterName: voter.Name,
			VoteeID:   votee.ID,
			VoteeName: votee.Name,
			Reason:    v.Reason,
		})
	}

	ctx.SendResp(WrapResponse(RESP_VOTE_RESULT, VoteResultNotification{
		Votes:        views,
		Counts:       vsh.outcome.Counts,
		EliminatedID: vsh.outcome.EliminatedID,
		Hung:         vsh.outcome.Hung(),
	}))

	ctx.SetTimeout(ctx.Pacing().VoteReveal, tagReveal)
}

func (vsh *votingStageHandler) reveal(ctx *GameContext) {
	if vsh.outcome.Hung() {
		ctx.AppendSystem("The vote is tied. Nobody is eliminated today.")
		vsh.onSwitch(PhaseVoteResult)
		return
	}

	eliminated, ok := ctx.Eliminate(vsh.outcome.EliminatedID)
	if !ok {
		zap.L().Error(
			"投票淘汰的角色不存在或已出局",
			zap.String("session_id", ctx.SessionID),
			zap.String("character_id", vsh.outcome.EliminatedID),
		)
		vsh.onSwitch(PhaseVoteResult)
		return
	}

	vsh.eliminated = eliminated
	ctx.AppendSystem(fmt.Sprintf("%s has been voted out.", eliminated.Name))

	roster, orc := ctx.Roster.Personas(), ctx.Oracle()

	ctx.Ask(stepFarewell, func(c context.Context) (any, error) {
		return orc.GetEliminationFarewell(c, roster, eliminated.Name)
	})
}

// 投票结果阶段：判断胜负，游戏未结束时进入夜晚
type voteResultStageHandler struct {
	baseHandler
}

func NewVoteResultStageHandler() *voteResultStageHandler {
	return &voteResultStageHandler{}
}

func (vrh *voteResultStageHandler) Stage() GamePhase {
	return PhaseVoteResult
}

func (vrh *voteResultStageHandler) OnEnter(ctx *GameContext) {
	verdict := EvaluateVerdict(ctx.Roster)
	if end, over := verdict.EndPhase(); over {
		ctx.Verdict = verdict
		vrh.onSwitch(end)
		return
	}

	ctx.SetTimeout(ctx.Pacing().VoteResult, tagToNight)
}

func (vrh *voteResultStageHandler) OnHandle(ctx *GameContext, req RequestWrapper) error {
	if req := TryUnwrapTimeoutRequest(req); req != nil && req.Tag == tagToNight {
		vrh.onSwitch(PhaseNight)
		return nil
	}

	return ErrWrongPhase
}

// 夜晚阶段：反派淘汰一名同事，天亮后判断胜负
type nightStageHandler struct {
	baseHandler

	outcome NightOutcome
}

func NewNightStageHandler() *nightStageHandler {
	return &nightStageHandler{}
}

func (nsh *nightStageHandler) Stage() GamePhase {
	return PhaseNight
}

func (nsh *nightStageHandler) OnEnter(ctx *GameContext) {
	ctx.AppendSystem("Night falls...")

	if !NeedsNightProposal(ctx.Roster) {
		nsh.outcome = NightOutcome{}
		ctx.SetTimeout(ctx.Pacing().Night, tagMorning)
		return
	}

	roster, orc := ctx.Roster.Personas(), ctx.Oracle()

	ctx.Ask(stepNight, func(c context.Context) (any, error) {
		return orc.GetNightProposal(c, roster)
	})
}

func (nsh *nightStageHandler) OnHandle(ctx *GameContext, req RequestWrapper) error {
	if res := TryUnwrapOracleResult(req); res != nil && res.Step == stepNight {
		proposal, _ := res.Value.(*oracle.NightProposal)

		nsh.outcome = ResolveNight(ctx.Roster, proposal, res.Err, ctx.Rng())
		if nsh.outcome.Fallback {
			zap.L().Warn(
				"夜晚提议不可用，随机选择目标",
				zap.String("session_id", ctx.SessionID),
				zap.Any("proposal", proposal),
				zap.Error(res.Err),
			)
		}

		ctx.SetTimeout(ctx.Pacing().Night, tagMorning)

		return nil
	}

	if req := TryUnwrapTimeoutRequest(req); req != nil && req.Tag == tagMorning {
		nsh.morning(ctx)
		return nil
	}

	return ErrWrongPhase
}

func (nsh *nightStageHandler) morning(ctx *GameContext) {
	if nsh.outcome.IsNoop() {
		ctx.AppendSystem("Nothing happened during the night.")
	} else if target, ok := ctx.Eliminate(nsh.outcome.TargetID); ok {
		ctx.AppendSystem(fmt.Sprintf(
			"Next morning, %s's desk is empty. Reason: %s",
			target.Name, nsh.outcome.Reason,
		))
	}

	verdict := EvaluateVerdict(ctx.Roster)
	if end, over := verdict.EndPhase(); over {
		ctx.Verdict = verdict
		nsh.onSwitch(end)
		return
	}

	ctx.Day++
	nsh.onSwitch(PhaseDayIntro)
}

// 结束阶段：公开所有身份，只接受重新开始
type endStageHandler struct {
	baseHandler

	stage GamePhase
}

func NewEndStageHandler(stage GamePhase) *endStageHandler {
	return &endStageHandler{stage: stage}
}

func (esh *endStageHandler) Stage() GamePhase {
	return esh.stage
}

func (esh *endStageHandler) OnEnter(ctx *GameContext) {
	var villain Character
	if ctx.Roster != nil {
		villain = ctx.Roster.Villain()
	}

	ctx.NotifyRoster()
	ctx.SendResp(WrapResponse(RESP_GAME_RESULT, GameResultNotification{
		Verdict:     ctx.Verdict,
		Stage:       esh.stage,
		Day:         ctx.Day,
		VillainID:   villain.ID,
		VillainName: villain.Name,
		Characters:  ctx.characterViews(),
	}))
}

func (esh *endStageHandler) OnHandle(ctx *GameContext, req RequestWrapper) error {
	return ErrWrongPhase
}
