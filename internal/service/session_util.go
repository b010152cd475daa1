package service

import (
	"time"

	"office-villain-be/internal/service/game"
)

func isFinished(gm *game.GameMachine) bool {
	select {
	case <-gm.Done():
		return true
	default:
		return false
	}
}

func isSessionValid(gm *game.GameMachine, now time.Time, idleTimeout time.Duration) bool {
	if gm == nil || isFinished(gm) {
		return false
	}

	if idleTimeout > 0 && now.Sub(gm.LastActive()) > idleTimeout {
		return false
	}

	return true
}
