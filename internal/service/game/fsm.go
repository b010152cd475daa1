package game

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// GameMachine 是游戏状态机，负责管理游戏状态和事件循环
type GameMachine struct {
	ctx     *GameContext
	handler StageHandler
	// 客户端请求汇总的通道
	reqCh chan RequestWrapper
	// 结束通道，用于通知游戏状态机退出事件循环
	doneCh   chan struct{}
	stopOnce sync.Once
	// 事件循环退出后关闭
	exitedCh chan struct{}

	createdAt  time.Time
	lastActive atomic.Int64
}

func NewGameMachine(sessionID string, deps Deps) *GameMachine {
	gm := &GameMachine{
		ctx:       newGameContext(sessionID, deps.withDefaults()),
		reqCh:     make(chan RequestWrapper, 64),
		doneCh:    make(chan struct{}),
		exitedCh:  make(chan struct{}),
		createdAt: time.Now(),
	}

	gm.handler = gm.newHandler(PhaseWelcome)
	gm.touch()

	return gm
}

func (gm *GameMachine) SessionID() string {
	return gm.ctx.SessionID
}

// Submit 把请求投递给事件循环，状态机已停止时返回 false
func (gm *GameMachine) Submit(req RequestWrapper) bool {
	gm.touch()

	select {
	case <-gm.doneCh:
		return false
	case <-gm.exitedCh:
		return false
	default:
	}

	select {
	case gm.reqCh <- req:
		return true
	case <-gm.doneCh:
		return false
	case <-gm.exitedCh:
		return false
	}
}

func (gm *GameMachine) Stop() {
	gm.stopOnce.Do(func() {
		close(gm.doneCh)
	})
}

// Done 在事件循环退出后关闭
func (gm *GameMachine) Done() <-chan struct{} {
	return gm.exitedCh
}

func (gm *GameMachine) Start() {
	defer gm.shutdown()

	// 执行初始 handler 的 OnEnter
	gm.handler.OnEnter(gm.ctx)
	gm.settle()

	// 进入事件循环
	for {
		var req RequestWrapper

		select {
		case req = <-gm.reqCh:
			zap.L().Debug(
				"接收到客户端请求",
				zap.String("session_id", gm.ctx.SessionID),
				zap.String("request_type", req.ReqType),
			)
		case req = <-gm.ctx.evtCh:
			zap.L().Debug(
				"接收到内部事件",
				zap.String("session_id", gm.ctx.SessionID),
				zap.String("request_type", req.ReqType),
			)
		case <-gm.doneCh:
			zap.L().Info(
				"收到退出信号，结束游戏状态机",
				zap.String("session_id", gm.ctx.SessionID),
			)
			return
		}

		gm.dispatch(req)

		if err := gm.ctx.fatalErr; err != nil {
			zap.L().Error(
				"游戏出现不可恢复的错误，结束游戏状态机",
				zap.String("session_id", gm.ctx.SessionID),
				zap.Error(err),
			)
			gm.ctx.SendResp(WrapErrResponse(err.Error()))
			return
		}
	}
}

func (gm *GameMachine) dispatch(req RequestWrapper) {
	internal := IsInternal(req.ReqType)

	switch req.ReqType {
	case REQ_ATTACH:
		if attach := TryUnwrapAttachRequest(req); attach != nil {
			gm.ctx.attach(attach.RespCh)
			gm.ctx.NotifySnapshot()
		}
		return
	case REQ_DETACH:
		if detach := TryUnwrapDetachRequest(req); detach != nil {
			gm.ctx.detach(detach.RespCh)
		}
		return
	case REQ_SNAPSHOT:
		gm.ctx.NotifySnapshot()
		return
	case REQ_RESTART:
		gm.restart()
		return
	case REQ_TIMEOUT, REQ_ORACLE_RESULT:
		if !gm.ctx.accept(req) {
			zap.L().Debug(
				"丢弃过期的内部事件",
				zap.String("session_id", gm.ctx.SessionID),
				zap.String("request_type", req.ReqType),
			)
			return
		}
	default:
		if gm.ctx.Busy() {
			gm.reject(req, ErrBusy)
			return
		}
	}

	if err := gm.handler.OnHandle(gm.ctx, req); err != nil {
		if internal {
			zap.L().Warn(
				"处理内部事件失败",
				zap.Error(err),
				zap.Stringer("stage", gm.handler.Stage()),
				zap.String("request_type", req.ReqType),
			)
		} else {
			gm.reject(req, err)
		}
	}

	gm.settle()
	gm.ctx.NotifyState()
}

func (gm *GameMachine) reject(req RequestWrapper, err error) {
	zap.L().Debug(
		"处理请求失败",
		zap.Error(err),
		zap.Stringer("stage", gm.handler.Stage()),
		zap.String("request_type", req.ReqType),
	)

	gm.ctx.SendResp(WrapErrResponse(err.Error()))
}

// restart 可以在任何阶段发生，进行中的异步操作会被丢弃
func (gm *GameMachine) restart() {
	zap.L().Info(
		"重新开始游戏",
		zap.String("session_id", gm.ctx.SessionID),
		zap.Stringer("from", gm.ctx.GameStage),
	)

	gm.ctx.nextEpoch()
	gm.ctx.GameStage = PhaseWelcome
	gm.switchStage()
	gm.handler.OnEnter(gm.ctx)
	gm.settle()

	gm.ctx.NotifySnapshot()
}

// settle 在阶段发生变化时依次执行切换，OnEnter 中也可能再次切换
func (gm *GameMachine) settle() {
	for gm.ctx.fatalErr == nil && gm.ctx.GameStage != gm.handler.Stage() {
		gm.switchStage()
		gm.handler.OnEnter(gm.ctx)
	}
}

func (gm *GameMachine) switchStage() {
	// 执行当前 handler 的 OnExit
	gm.handler.OnExit(gm.ctx)

	zap.L().Info(
		"切换游戏阶段",
		zap.String("session_id", gm.ctx.SessionID),
		zap.Stringer("from", gm.handler.Stage()),
		zap.Stringer("to", gm.ctx.GameStage),
	)

	gm.handler = gm.newHandler(gm.ctx.GameStage)
}

func (gm *GameMachine) newHandler(stage GamePhase) StageHandler {
	var handler StageHandler

	switch stage {
	case PhaseWelcome:
		handler = NewWelcomeStageHandler()
	case PhaseSetup:
		handler = NewSetupStageHandler()
	case PhaseDayIntro:
		handler = NewDayIntroStageHandler()
	case PhaseDayDiscussion:
		handler = NewDiscussionStageHandler()
	case PhaseVoting:
		handler = NewVotingStageHandler()
	case PhaseVoteResult:
		handler = NewVoteResultStageHandler()
	case PhaseNight:
		handler = NewNightStageHandler()
	case PhaseEndWin, PhaseEndLose:
		handler = NewEndStageHandler(stage)
	default:
		gm.ctx.Fail(errors.New("未知的游戏阶段: " + stage.String()))
		handler = NewEndStageHandler(stage)
	}

	handler.SetOnSwitch(gm.onSwitch)

	return handler
}

// onSwitch 只接受合法的阶段切换
func (gm *GameMachine) onSwitch(next GamePhase) {
	current := gm.ctx.GameStage
	if !current.CanTransitionTo(next) {
		zap.L().Error(
			"非法的阶段切换",
			zap.String("session_id", gm.ctx.SessionID),
			zap.Stringer("from", current),
			zap.Stringer("to", next),
		)
		return
	}

	gm.ctx.GameStage = next
}

// shutdown 释放资源，只有状态机会关闭客户端的响应通道
func (gm *GameMachine) shutdown() {
	gm.ctx.cancel()
	gm.ctx.detach(gm.ctx.respCh)
	close(gm.exitedCh)

	zap.L().Info(
		"游戏状态机已结束",
		zap.String("session_id", gm.ctx.SessionID),
	)
}

func (gm *GameMachine) touch() {
	gm.lastActive.Store(time.Now().UnixNano())
}

func (gm *GameMachine) LastActive() time.Time {
	return time.Unix(0, gm.lastActive.Load())
}

func (gm *GameMachine) CreatedAt() time.Time {
	return gm.createdAt
}
