package game

import (
	"context"
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"office-villain-be/internal/oracle"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockOracle struct {
	mock.Mock
}

func (m *MockOracle) SetupGame(ctx context.Context, size int) (*oracle.SetupResult, error) {
	args := m.Called(ctx, size)
	res, _ := args.Get(0).(*oracle.SetupResult)
	return res, args.Error(1)
}

func (m *MockOracle) GenerateDayIntro(ctx context.Context, alive []oracle.Persona, day int) (*oracle.DayIntro, error) {
	args := m.Called(ctx, alive, day)
	res, _ := args.Get(0).(*oracle.DayIntro)
	return res, args.Error(1)
}

func (m *MockOracle) GetQuestionResponse(ctx context.Context, target oracle.Persona, question string) (string, error) {
	args := m.Called(ctx, target, question)
	return args.String(0), args.Error(1)
}

func (m *MockOracle) GetEliminationFarewell(ctx context.Context, roster []oracle.Persona, eliminated string) (string, error) {
	args := m.Called(ctx, roster, eliminated)
	return args.String(0), args.Error(1)
}

func (m *MockOracle) GetNightProposal(ctx context.Context, roster []oracle.Persona) (*oracle.NightProposal, error) {
	args := m.Called(ctx, roster)
	res, _ := args.Get(0).(*oracle.NightProposal)
	return res, args.Error(1)
}

func (m *MockOracle) GetVoteProposals(ctx context.Context, roster []oracle.Persona, playerVote oracle.VoteProposal, recent []oracle.Line) ([]oracle.VoteProposal, error) {
	args := m.Called(ctx, roster, playerVote, recent)
	res, _ := args.Get(0).([]oracle.VoteProposal)
	return res, args.Error(1)
}

// instantPacer 立即结束展示延迟
type instantPacer struct{}

func (instantPacer) Wait(ctx context.Context, d time.Duration) error {
	return ctx.Err()
}

// 测试名单：Kim 是反派，Lee 是玩家
var testSeeds = []oracle.CharacterSeed{
	{Name: "Kim", Title: "Project Manager"},
	{Name: "Lee", Title: "Designer"},
	{Name: "Park", Title: "Backend Developer"},
	{Name: "Choi", Title: "Frontend Developer"},
	{Name: "Jung", Title: "QA Engineer"},
	{Name: "Kang", Title: "Data Analyst"},
}

const (
	idKim  = "id-0"
	idLee  = "id-1"
	idPark = "id-2"
	idChoi = "id-3"
	idJung = "id-4"
	idKang = "id-5"
)

func sequentialIDs() func() string {
	next := 0
	return func() string {
		id := fmt.Sprintf("id-%d", next)
		next++
		return id
	}
}

func fixedRoles(villainIdx, playerIdx int) func(int, *rand.Rand) (int, int) {
	return func(int, *rand.Rand) (int, int) {
		return villainIdx, playerIdx
	}
}

func newTestRng() *rand.Rand {
	return rand.New(rand.NewPCG(1, 2))
}

func newTestRoster(t *testing.T) *Roster {
	t.Helper()

	r, err := NewRoster(testSeeds, 0, 1, sequentialIDs())
	require.NoError(t, err)

	return r
}

func newTestDeps(orc oracle.Oracle) Deps {
	return Deps{
		Oracle:      orc,
		Pacer:       instantPacer{},
		Pacing:      DefaultPacing(),
		RosterSize:  len(testSeeds),
		Rng:         newTestRng(),
		NewID:       sequentialIDs(),
		AssignRoles: fixedRoles(0, 1),
	}
}

func mustEliminate(t *testing.T, r *Roster, ids ...string) {
	t.Helper()

	for _, id := range ids {
		require.True(t, r.eliminate(id), "eliminate %s", id)
	}
}
