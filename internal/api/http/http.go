package http

import (
	"fmt"

	"office-villain-be/internal/api/http/websocket"
	"office-villain-be/internal/state"

	"github.com/kataras/iris/v12"
)

// NewApp 注册所有路由，未配置静态目录时不提供前端页面
func NewApp(appState *state.AppState) *iris.Application {
	app := iris.Default()

	if dir := appState.Cfg.StaticDir; dir != "" {
		app.HandleDir(
			"/",
			iris.Dir(dir),
			iris.DirOptions{
				IndexName: "index.html",
				SPA:       true,
				Compress:  true,
			},
		)
	}

	api := app.Party("/api/v1")

	api.Post("/sessions/create", CreateSession(appState))
	api.Get("/sessions/{id:string}", DescribeSession(appState))

	api.Get("/ws/play", websocket.PlayGame(appState))

	return app
}

func RunServer(appState *state.AppState) error {
	addr := fmt.Sprintf(
		"%s:%d",
		appState.Cfg.Host,
		appState.Cfg.Port,
	)

	return NewApp(appState).Listen(addr)
}
