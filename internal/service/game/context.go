package game

import (
	"context"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"office-villain-be/internal/oracle"
)

// Deps 是状态机依赖的外部协作者
type Deps struct {
	Oracle     oracle.Oracle
	Pacer      Pacer
	Pacing     Pacing
	RosterSize int
	Rng        *rand.Rand
	NewID      func() string
	// 可替换，便于测试固定反派和玩家
	AssignRoles func(n int, rng *rand.Rand) (villainIdx, playerIdx int)
}

func (d Deps) withDefaults() Deps {
	if d.Pacer == nil {
		d.Pacer = TimerPacer{}
	}

	if d.Pacing == (Pacing{}) {
		d.Pacing = DefaultPacing()
	}

	if d.RosterSize < 3 {
		d.RosterSize = len(fallbackCharacters)
	}

	if d.Rng == nil {
		d.Rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	if d.NewID == nil {
		d.NewID = GenID
	}

	if d.AssignRoles == nil {
		d.AssignRoles = AssignRoles
	}

	return d
}

// GameContext 是一局游戏的全部状态，只能由状态机所在的协程读写
type GameContext struct {
	SessionID string
	GameStage GamePhase
	Day       int

	Roster     *Roster
	Background string
	Dialogue   []DialogueEntry

	SelectedID string
	Questioned map[string]bool

	LastVote *VoteOutcome
	Verdict  Verdict

	deps   Deps
	respCh chan ResponseWrapper
	evtCh  chan RequestWrapper

	// epoch 在重新开始时递增，旧 epoch 的异步结果一律丢弃
	epoch    uint64
	epochCtx context.Context
	cancel   context.CancelFunc

	// seq 标识最近一次发出的异步操作
	seq     uint64
	pending string

	fatalErr error
}

func newGameContext(sessionID string, deps Deps) *GameContext {
	gc := &GameContext{
		SessionID: sessionID,
		GameStage: PhaseWelcome,
		deps:      deps,
		evtCh:     make(chan RequestWrapper, 16),
	}

	gc.epochCtx, gc.cancel = context.WithCancel(context.Background())
	gc.reset()

	return gc
}

// reset 清空整局游戏的状态，不影响连接和 epoch
func (gc *GameContext) reset() {
	gc.Day = 1
	gc.Roster = nil
	gc.Background = ""
	gc.Dialogue = nil
	gc.SelectedID = ""
	gc.Questioned = make(map[string]bool)
	gc.LastVote = nil
	gc.Verdict = VerdictContinue
}

// nextEpoch 取消所有进行中的异步操作
func (gc *GameContext) nextEpoch() {
	gc.cancel()

	gc.epoch++
	gc.epochCtx, gc.cancel = context.WithCancel(context.Background())
	gc.pending = ""
}

func (gc *GameContext) Busy() bool {
	return gc.pending != ""
}

// Ask 在独立协程中调用 Oracle，结果作为内部事件投递回事件循环。
// fn 不能访问 GameContext，所需数据必须在调用 Ask 之前复制出来。
func (gc *GameContext) Ask(step string, fn func(ctx context.Context) (any, error)) {
	gc.seq++
	gc.pending = step

	epoch, seq := gc.epoch, gc.seq
	ctx, evtCh := gc.epochCtx, gc.evtCh

	go func() {
		value, err := fn(ctx)

		evt := RequestWrapper{
			ReqType: REQ_ORACLE_RESULT,
			NativeData: &OracleResult{
				Epoch: epoch,
				Seq:   seq,
				Step:  step,
				Value: value,
				Err:   err,
			},
		}

		select {
		case evtCh <- evt:
		case <-ctx.Done():
		}
	}()
}

// SetTimeout 在展示延迟结束后投递超时事件，重新开始时延迟会被取消
func (gc *GameContext) SetTimeout(d time.Duration, tag string) {
	gc.seq++
	gc.pending = tag

	epoch, seq, stage := gc.epoch, gc.seq, gc.GameStage
	ctx, evtCh, pacer := gc.epochCtx, gc.evtCh, gc.deps.Pacer

	go func() {
		if err := pacer.Wait(ctx, d); err != nil {
			return
		}

		evt := RequestWrapper{
			ReqType: REQ_TIMEOUT,
			NativeData: &TimeoutRequest{
				Epoch: epoch,
				Seq:   seq,
				Stage: stage,
				Tag:   tag,
			},
		}

		select {
		case evtCh <- evt:
		case <-ctx.Done():
		}
	}()
}

// accept 判断内部事件是否对应当前等待的异步操作。
// 超时事件还必须属于当前阶段，否则说明阶段已经被切换过。
func (gc *GameContext) accept(req RequestWrapper) bool {
	var (
		epoch, seq uint64
		pending    string
	)

	if res := TryUnwrapOracleResult(req); res != nil {
		epoch, seq, pending = res.Epoch, res.Seq, res.Step
	} else if tmo := TryUnwrapTimeoutRequest(req); tmo != nil {
		if tmo.Stage != gc.GameStage {
			return false
		}
		epoch, seq, pending = tmo.Epoch, tmo.Seq, tmo.Tag
	} else {
		return false
	}

	if epoch != gc.epoch || seq != gc.seq || gc.pending == "" || pending != gc.pending {
		return false
	}

	gc.pending = ""

	return true
}

// Fail 标记不可恢复的错误，状态机会通知客户端并退出
func (gc *GameContext) Fail(err error) {
	gc.fatalErr = err
}

func (gc *GameContext) Oracle() oracle.Oracle {
	return gc.deps.Oracle
}

func (gc *GameContext) Rng() *rand.Rand {
	return gc.deps.Rng
}

func (gc *GameContext) Pacing() Pacing {
	return gc.deps.Pacing
}

// attach 替换当前的客户端响应通道
func (gc *GameContext) attach(respCh chan ResponseWrapper) {
	if gc.respCh != nil && gc.respCh != respCh {
		close(gc.respCh)
	}

	gc.respCh = respCh
}

func (gc *GameContext) detach(respCh chan ResponseWrapper) {
	if gc.respCh == nil || gc.respCh != respCh {
		return
	}

	close(gc.respCh)
	gc.respCh = nil
}

func (gc *GameContext) SendResp(resp ResponseWrapper) {
	if gc.respCh == nil {
		zap.L().Debug(
			"没有客户端连接，丢弃响应",
			zap.String("session_id", gc.SessionID),
			zap.String("response_type", resp.RespType),
		)
		return
	}

	select {
	case gc.respCh <- resp:
		zap.L().Debug(
			"发送响应成功",
			zap.String("session_id", gc.SessionID),
			zap.Any("response", resp),
		)
	default:
		zap.L().Warn(
			"发送响应失败：响应通道已满",
			zap.String("session_id", gc.SessionID),
			zap.String("response_type", resp.RespType),
		)
	}
}

func (gc *GameContext) appendEntries(entries ...DialogueEntry) {
	gc.Dialogue = append(gc.Dialogue, entries...)
	gc.SendResp(WrapResponse(RESP_DIALOGUE, DialogueNotification{Entries: entries}))
}

func (gc *GameContext) AppendSystem(message string) {
	gc.appendEntries(DialogueEntry{Speaker: SpeakerSystem, Message: message})
}

func (gc *GameContext) AppendLine(c Character, message string) {
	gc.appendEntries(DialogueEntry{Speaker: c.Name, SpeakerID: c.ID, Message: message})
}

// RecentLines 返回最近 limit 条对话，用作 Oracle 的上下文
func (gc *GameContext) RecentLines(limit int) []oracle.Line {
	start := max(len(gc.Dialogue)-limit, 0)

	out := make([]oracle.Line, 0, len(gc.Dialogue)-start)
	for _, e := range gc.Dialogue[start:] {
		out = append(out, oracle.Line{Speaker: e.Speaker, Message: e.Message})
	}

	return out
}

// Eliminate 淘汰角色并通知客户端名单变化
func (gc *GameContext) Eliminate(id string) (Character, bool) {
	if gc.Roster == nil || !gc.Roster.eliminate(id) {
		return Character{}, false
	}

	c, _ := gc.Roster.Get(id)
	gc.SendResp(WrapResponse(RESP_ROSTER, RosterNotification{Characters: gc.characterViews()}))

	return c, true
}

// characterViews 只公开玩家自己的身份，游戏结束后公开全部身份
func (gc *GameContext) characterViews() []CharacterView {
	if gc.Roster == nil {
		return []CharacterView{}
	}

	reveal := gc.GameStage.IsTerminal()

	chars := gc.Roster.Characters()
	out := make([]CharacterView, 0, len(chars))

	for _, c := range chars {
		view := CharacterView{
			ID:        c.ID,
			Name:      c.Name,
			Title:     c.Title,
			IsPlayer:  c.IsPlayer,
			IsAlive:   c.IsAlive,
			AvatarRef: c.AvatarRef,
		}

		if reveal || c.IsPlayer {
			view.Role = c.Role.String()
		}

		out = append(out, view)
	}

	return out
}

func (gc *GameContext) stateNotification() GameStateNotification {
	questioned := make([]string, 0, len(gc.Questioned))
	if gc.Roster != nil {
		for _, c := range gc.Roster.Characters() {
			if gc.Questioned[c.ID] {
				questioned = append(questioned, c.ID)
			}
		}
	}

	return GameStateNotification{
		Stage:      gc.GameStage,
		Day:        gc.Day,
		Busy:       gc.Busy(),
		SelectedID: gc.SelectedID,
		Questioned: questioned,
	}
}

func (gc *GameContext) NotifyState() {
	gc.SendResp(WrapResponse(RESP_GAME_STATE, gc.stateNotification()))
}

func (gc *GameContext) NotifyRoster() {
	gc.SendResp(WrapResponse(RESP_ROSTER, RosterNotification{Characters: gc.characterViews()}))
}

func (gc *GameContext) Snapshot() SnapshotNotification {
	dialogue := make([]DialogueEntry, len(gc.Dialogue))
	copy(dialogue, gc.Dialogue)

	return SnapshotNotification{
		State:      gc.stateNotification(),
		Background: gc.Background,
		Characters: gc.characterViews(),
		Dialogue:   dialogue,
	}
}

func (gc *GameContext) NotifySnapshot() {
	gc.SendResp(WrapResponse(RESP_SNAPSHOT, gc.Snapshot()))
}
