package game

import (
	"context"
	"time"
)

// Pacer 负责阶段之间的展示延迟，测试中可以替换为立即返回的实现
type Pacer interface {
	Wait(ctx context.Context, d time.Duration) error
}

type TimerPacer struct{}

func (TimerPacer) Wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pacing 是各个展示延迟的时长
type Pacing struct {
	SetupDwell   time.Duration
	DayIntro     time.Duration
	VoteReveal   time.Duration
	VoteFarewell time.Duration
	VoteResult   time.Duration
	Night        time.Duration
}

func DefaultPacing() Pacing {
	return Pacing{
		SetupDwell:   2 * time.Second,
		DayIntro:     2 * time.Second,
		VoteReveal:   3 * time.Second,
		VoteFarewell: 3 * time.Second,
		VoteResult:   3 * time.Second,
		Night:        4 * time.Second,
	}
}
