package main

import (
	"office-villain-be/internal/api/http"
	"office-villain-be/internal/config"
	"office-villain-be/internal/llm"
	_ "office-villain-be/internal/llm/providers/google"
	"office-villain-be/internal/logger"
	"office-villain-be/internal/oracle"
	"office-villain-be/internal/service"
	"office-villain-be/internal/service/game"
	"office-villain-be/internal/state"

	"go.uber.org/zap"
)

func main() {
	// 加载配置
	cfg := config.InitConfig()
	if err := cfg.Validate(); err != nil {
		panic(err)
	}

	// 初始化日志器
	lgr := logger.InitLogger(cfg.LogLevel)
	defer lgr.Sync()

	// 初始化 LLM 提供者
	provider, err := llm.GetProvider(cfg.Oracle.Provider, cfg.Oracle.ProviderConfig())
	if err != nil {
		zap.L().Fatal(
			"初始化 LLM 提供者失败",
			zap.String("provider", cfg.Oracle.Provider),
			zap.Strings("available", llm.ListProviders()),
			zap.Error(err),
		)
	}

	deps := game.Deps{
		Oracle: oracle.NewLLMOracle(provider, cfg.Oracle.Timeout, cfg.Oracle.Language),
		Pacing: game.Pacing{
			SetupDwell:   cfg.Pacing.SetupDwell,
			DayIntro:     cfg.Pacing.DayIntro,
			VoteReveal:   cfg.Pacing.VoteReveal,
			VoteFarewell: cfg.Pacing.VoteFarewell,
			VoteResult:   cfg.Pacing.VoteResult,
			Night:        cfg.Pacing.Night,
		},
		RosterSize: cfg.RosterSize,
	}

	sessionSvc := service.NewSessionService(deps, cfg.SessionIdleTimeout)
	defer sessionSvc.Close()

	// 组装应用状态
	appState := state.NewAppState(cfg, sessionSvc)

	zap.L().Info(
		"服务启动",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("provider", provider.GetName()),
	)

	// 启动服务器
	if err := http.RunServer(appState); err != nil {
		zap.L().Error("服务器异常退出", zap.Error(err))
	}
}
