package websocket

import (
	"encoding/json"
	"errors"
	"time"

	"office-villain-be/internal/service/dto"
	"office-villain-be/internal/service/game"
	"office-villain-be/internal/state"

	"github.com/gorilla/websocket"
	"github.com/kataras/iris/v12"
	"go.uber.org/zap"
)

// PlayGame 把一个 WebSocket 连接绑定到已有的会话。
// 同一会话的新连接会替换旧连接，旧连接的响应通道由状态机关闭。
func PlayGame(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		sessionID := ctx.URLParam("session_id")
		if sessionID == "" {
			ctx.StatusCode(iris.StatusBadRequest)
			ctx.JSON(dto.ErrorResponse{Error: "缺少 session_id"})
			return
		}

		if _, err := appState.SessionSvc.GetSession(sessionID); err != nil {
			ctx.StatusCode(iris.StatusNotFound)
			ctx.JSON(dto.ErrorResponse{Error: err.Error()})
			return
		}

		conn, err := upgrader.Upgrade(
			ctx.ResponseWriter(),
			ctx.Request(),
			nil,
		)
		if err != nil {
			zap.L().Error("升级到WebSocket失败", zap.Error(err))
			return
		}

		defer conn.Close()

		clientIP := ctx.RemoteAddr()

		conn.SetReadLimit(MAX_MESSAGE_SIZE)
		conn.SetReadDeadline(time.Now().Add(HEARTBEAT_TIMEOUT))
		conn.SetPongHandler(extendReadDeadline(conn))

		// 状态机的响应，只有状态机会关闭该通道
		respCh := make(chan game.ResponseWrapper, 64)
		// 连接本身产生的错误响应
		localCh := make(chan game.ResponseWrapper, 8)

		gm, err := appState.SessionSvc.Attach(sessionID, respCh)
		if err != nil {
			zap.L().Warn(
				"绑定会话失败",
				zap.String("client_ip", clientIP),
				zap.String("session_id", sessionID),
				zap.Error(err),
			)
			writeClose(conn, websocket.ClosePolicyViolation, err.Error())
			return
		}

		zap.L().Info(
			"客户端已连接",
			zap.String("client_ip", clientIP),
			zap.String("session_id", sessionID),
		)

		// 写协程的退出信号
		writeDoneCh := make(chan struct{})
		writerExitedCh := make(chan struct{})

		go writeLoop(conn, clientIP, respCh, localCh, writeDoneCh, writerExitedCh)

		readLoop(conn, clientIP, gm, localCh)

		// 读循环退出，表示客户端断开连接
		appState.SessionSvc.Detach(gm, respCh)
		close(writeDoneCh)
		<-writerExitedCh

		zap.L().Info(
			"WebSocket连接处理完成",
			zap.String("client_ip", clientIP),
			zap.String("session_id", sessionID),
		)
	}
}

func readLoop(conn *websocket.Conn, clientIP string, gm *game.GameMachine, localCh chan<- game.ResponseWrapper) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(
				err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure,
				websocket.CloseAbnormalClosure,
			) {
				zap.L().Error(
					"读取消息失败",
					zap.String("client_ip", clientIP),
					zap.Error(err),
				)
			}

			return
		}

		conn.SetReadDeadline(time.Now().Add(HEARTBEAT_TIMEOUT))

		wrapper, err := parseRequest(msg)
		if err != nil {
			zap.L().Debug(
				"解析消息失败",
				zap.String("client_ip", clientIP),
				zap.Error(err),
			)

			select {
			case localCh <- game.WrapErrResponse(err.Error()):
			default:
			}

			continue
		}

		// 将解析后的请求发送到游戏状态机
		if !gm.Submit(wrapper) {
			zap.L().Info(
				"会话已结束，停止读取",
				zap.String("client_ip", clientIP),
				zap.String("session_id", gm.SessionID()),
			)
			return
		}
	}
}

var (
	errInvalidRequest  = errors.New("无效的请求格式")
	errInternalRequest = errors.New("不允许的请求类型")
)

func parseRequest(msg []byte) (game.RequestWrapper, error) {
	var wrapper game.RequestWrapper

	if err := json.Unmarshal(msg, &wrapper); err != nil || wrapper.ReqType == "" {
		return game.RequestWrapper{}, errInvalidRequest
	}

	if game.IsInternal(wrapper.ReqType) {
		return game.RequestWrapper{}, errInternalRequest
	}

	return wrapper, nil
}

func writeLoop(
	conn *websocket.Conn,
	clientIP string,
	respCh <-chan game.ResponseWrapper,
	localCh <-chan game.ResponseWrapper,
	writeDoneCh <-chan struct{},
	writerExitedCh chan<- struct{},
) {
	defer close(writerExitedCh)

	ticker := time.NewTicker(HEARTBEAT_INTERVAL)
	defer ticker.Stop()

	for {
		var resp game.ResponseWrapper

		select {
		case <-writeDoneCh:
			return

		case <-ticker.C:
			if err := writePing(conn); err != nil {
				zap.L().Error(
					"发送心跳失败",
					zap.String("client_ip", clientIP),
					zap.Error(err),
				)
				conn.Close()
				return
			}
			continue

		case resp = <-localCh:

		case r, ok := <-respCh:
			// 通道被状态机关闭：会话结束或被新连接替换
			if !ok {
				zap.L().Info(
					"响应通道已关闭，断开连接",
					zap.String("client_ip", clientIP),
				)
				writeClose(conn, websocket.CloseNormalClosure, "session detached")
				conn.Close()
				return
			}
			resp = r
		}

		if err := writeJSON(conn, resp); err != nil {
			zap.L().Error(
				"发送消息失败",
				zap.String("client_ip", clientIP),
				zap.Error(err),
			)
			conn.Close()
			return
		}
	}
}
