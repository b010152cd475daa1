package service

import (
	"errors"
	"sync"
	"time"

	"office-villain-be/internal/service/dto"
	"office-villain-be/internal/service/game"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrSessionNotFound = errors.New("会话不存在或已结束")

// SessionService 管理所有进行中的游戏会话，每个会话由独立的状态机协程驱动
type SessionService struct {
	state *sessionServiceState

	// 新会话使用的依赖，Rng 为空时每个会话单独创建
	deps        game.Deps
	idleTimeout time.Duration
}

type sessionServiceState struct {
	mu sync.RWMutex

	// 从会话 ID 到状态机的映射
	sessions map[string]*game.GameMachine

	cleanUpDone chan struct{}
	closeOnce   sync.Once
}

func NewSessionService(deps game.Deps, idleTimeout time.Duration) *SessionService {
	ss := &SessionService{
		state: &sessionServiceState{
			sessions:    make(map[string]*game.GameMachine),
			cleanUpDone: make(chan struct{}),
		},
		deps:        deps,
		idleTimeout: idleTimeout,
	}

	// 启动一个 goroutine 定期清理过期的会话
	go ss.startCleanupLoop(time.Minute)

	return ss
}

func (ss *SessionService) startCleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ss.state.cleanUpDone:
			return

		case now := <-ticker.C:
			if n := ss.cleanup(now); n > 0 {
				zap.S().Infof("清理了 %d 个失效会话", n)
			}
		}
	}
}

// cleanup 停止并移除已结束或空闲超时的会话，返回移除的数量
func (ss *SessionService) cleanup(now time.Time) int {
	ss.state.mu.Lock()
	defer ss.state.mu.Unlock()

	removed := 0

	for sessionID, gm := range ss.state.sessions {
		if isSessionValid(gm, now, ss.idleTimeout) {
			continue
		}

		zap.S().Infof("会话 %s 状态失效，开始清理", sessionID)

		gm.Stop()
		delete(ss.state.sessions, sessionID)
		removed++
	}

	return removed
}

// Close 停止清理协程和所有会话
func (ss *SessionService) Close() {
	ss.state.closeOnce.Do(func() {
		close(ss.state.cleanUpDone)
	})

	ss.state.mu.Lock()
	defer ss.state.mu.Unlock()

	for sessionID, gm := range ss.state.sessions {
		gm.Stop()
		delete(ss.state.sessions, sessionID)
	}
}

func (ss *SessionService) CreateSession() (dto.CreateSessionResponse, error) {
	sessionID := uuid.NewString()

	gm := game.NewGameMachine(sessionID, ss.deps)

	ss.state.mu.Lock()
	ss.state.sessions[sessionID] = gm
	ss.state.mu.Unlock()

	go gm.Start()

	zap.S().Infof("会话 %s 已创建", sessionID)

	return dto.CreateSessionResponse{
		SessionID: sessionID,
		CreatedAt: gm.CreatedAt(),
	}, nil
}

func (ss *SessionService) GetSession(sessionID string) (*game.GameMachine, error) {
	ss.state.mu.RLock()
	defer ss.state.mu.RUnlock()

	gm, ok := ss.state.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}

	return gm, nil
}

func (ss *SessionService) Describe(sessionID string) (dto.SessionInfo, error) {
	gm, err := ss.GetSession(sessionID)
	if err != nil {
		return dto.SessionInfo{}, err
	}

	return dto.SessionInfo{
		SessionID:  sessionID,
		CreatedAt:  gm.CreatedAt(),
		LastActive: gm.LastActive(),
		Finished:   isFinished(gm),
	}, nil
}

// Attach 把客户端连接绑定到会话，同一会话的旧连接会被替换
func (ss *SessionService) Attach(sessionID string, respCh chan game.ResponseWrapper) (*game.GameMachine, error) {
	gm, err := ss.GetSession(sessionID)
	if err != nil {
		return nil, err
	}

	ok := gm.Submit(game.RequestWrapper{
		ReqType:    game.REQ_ATTACH,
		NativeData: &game.AttachRequest{RespCh: respCh},
	})
	if !ok {
		return nil, ErrSessionNotFound
	}

	zap.S().Debugf("会话 %s 绑定了新的连接", sessionID)

	return gm, nil
}

// Detach 在连接断开时调用，只有当前绑定的连接会被解除
func (ss *SessionService) Detach(gm *game.GameMachine, respCh chan game.ResponseWrapper) {
	gm.Submit(game.RequestWrapper{
		ReqType:    game.REQ_DETACH,
		NativeData: &game.DetachRequest{RespCh: respCh},
	})
}

func (ss *SessionService) Count() int {
	ss.state.mu.RLock()
	defer ss.state.mu.RUnlock()

	return len(ss.state.sessions)
}
