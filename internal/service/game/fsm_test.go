package game

import (
	"errors"
	"testing"
	"time"

	"office-villain-be/internal/oracle"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const waitTimeout = 3 * time.Second

func startMachine(t *testing.T, deps Deps) (*GameMachine, chan ResponseWrapper) {
	t.Helper()

	gm := NewGameMachine("test-session", deps)
	go gm.Start()

	t.Cleanup(func() {
		gm.Stop()
		select {
		case <-gm.Done():
		case <-time.After(waitTimeout):
			t.Error("game machine did not stop")
		}
	})

	respCh := make(chan ResponseWrapper, 1024)
	require.True(t, gm.Submit(RequestWrapper{
		ReqType:    REQ_ATTACH,
		NativeData: &AttachRequest{RespCh: respCh},
	}))

	waitFor(t, respCh, func(resp ResponseWrapper) bool {
		return resp.RespType == RESP_SNAPSHOT
	})

	return gm, respCh
}

func submit(t *testing.T, gm *GameMachine, reqType string, data any) {
	t.Helper()

	req := RequestWrapper{ReqType: reqType}
	if data != nil {
		req.Data = mustMarshal(data)
	}

	require.True(t, gm.Submit(req))
}

func waitFor(t *testing.T, respCh chan ResponseWrapper, match func(ResponseWrapper) bool) ResponseWrapper {
	t.Helper()

	deadline := time.After(waitTimeout)
	for {
		select {
		case resp, ok := <-respCh:
			require.True(t, ok, "response channel closed")
			if match(resp) {
				return resp
			}
		case <-deadline:
			require.FailNow(t, "timed out waiting for response")
		}
	}
}

// waitIdle 等待状态机进入指定阶段且没有进行中的异步操作
func waitIdle(t *testing.T, respCh chan ResponseWrapper, stage GamePhase) GameStateNotification {
	t.Helper()

	resp := waitFor(t, respCh, func(resp ResponseWrapper) bool {
		state, ok := resp.Data.(GameStateNotification)
		return resp.RespType == RESP_GAME_STATE && ok && state.Stage == stage && !state.Busy
	})

	return resp.Data.(GameStateNotification)
}

func waitError(t *testing.T, respCh chan ResponseWrapper) string {
	t.Helper()

	return waitFor(t, respCh, func(resp ResponseWrapper) bool {
		return resp.RespType == RESP_ERROR
	}).ErrMsg
}

func snapshot(t *testing.T, gm *GameMachine, respCh chan ResponseWrapper) SnapshotNotification {
	t.Helper()

	submit(t, gm, REQ_SNAPSHOT, nil)

	return waitFor(t, respCh, func(resp ResponseWrapper) bool {
		return resp.RespType == RESP_SNAPSHOT
	}).Data.(SnapshotNotification)
}

func messages(entries []DialogueEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Message)
	}

	return out
}

func aliveNames(views []CharacterView) []string {
	var out []string
	for _, c := range views {
		if c.IsAlive {
			out = append(out, c.Name)
		}
	}

	return out
}

func expectSetup(orc *MockOracle) {
	orc.On("SetupGame", mock.Anything, len(testSeeds)).
		Return(&oracle.SetupResult{Background: "A small startup.", Characters: testSeeds}, nil)

	orc.On("GenerateDayIntro", mock.Anything, mock.Anything, mock.Anything).
		Return(&oracle.DayIntro{
			Incident:  "The coffee machine broke.",
			Dialogues: map[string]string{"Kim": "Not me.", "Ghost": "Boo."},
		}, nil)
}

// voteOut 要求调用方已经等到空闲的 DayDiscussion 状态
func voteOut(t *testing.T, gm *GameMachine, respCh chan ResponseWrapper, targetID string) {
	t.Helper()

	submit(t, gm, REQ_BEGIN_VOTING, nil)
	waitIdle(t, respCh, PhaseVoting)

	submit(t, gm, REQ_SELECT_CHARACTER, SelectCharacterRequest{CharacterID: targetID})
	waitFor(t, respCh, func(resp ResponseWrapper) bool {
		sel, ok := resp.Data.(SelectionNotification)
		return resp.RespType == RESP_SELECTION && ok && sel.SelectedID == targetID
	})

	submit(t, gm, REQ_CONFIRM_VOTE, nil)
}

func TestGameMachine_VillainOutlastsColleagues(t *testing.T) {
	orc := &MockOracle{}
	expectSetup(orc)

	orc.On("GetVoteProposals", mock.Anything, mock.Anything, oracle.VoteProposal{Voter: "Lee", Votee: "Park"}, mock.Anything).
		Return([]oracle.VoteProposal{
			{Voter: "Kim", Votee: "Park", Reason: "Too quiet."},
			{Voter: "Choi", Votee: "Park"},
			{Voter: "Jung", Votee: "Lee"},
			{Voter: "Kang", Votee: "Park"},
		}, nil).Once()
	orc.On("GetEliminationFarewell", mock.Anything, mock.Anything, "Park").Return("Goodbye, team.", nil).Once()
	orc.On("GetNightProposal", mock.Anything, mock.Anything).
		Return(&oracle.NightProposal{Eliminated: "Choi", Reason: "Saw too much."}, nil).Once()

	orc.On("GetVoteProposals", mock.Anything, mock.Anything, oracle.VoteProposal{Voter: "Lee", Votee: "Jung"}, mock.Anything).
		Return([]oracle.VoteProposal{
			{Voter: "Kim", Votee: "Jung"},
			{Voter: "Jung", Votee: "Lee"},
			{Voter: "Kang", Votee: "Jung"},
		}, nil).Once()
	orc.On("GetEliminationFarewell", mock.Anything, mock.Anything, "Jung").Return("", errors.New("quota exceeded")).Once()
	orc.On("GetNightProposal", mock.Anything, mock.Anything).
		Return(&oracle.NightProposal{Eliminated: "Kang", Reason: "Knew the truth."}, nil).Once()

	gm, respCh := startMachine(t, newTestDeps(orc))

	submit(t, gm, REQ_START_GAME, nil)

	// 第一天投出 Park，剩余四名同事，游戏继续
	waitIdle(t, respCh, PhaseDayDiscussion)
	voteOut(t, gm, respCh, idPark)

	result := waitFor(t, respCh, func(resp ResponseWrapper) bool {
		return resp.RespType == RESP_VOTE_RESULT
	}).Data.(VoteResultNotification)
	assert.Equal(t, idPark, result.EliminatedID)
	assert.Equal(t, 4, result.Counts[idPark])
	assert.Len(t, result.Votes, 5)

	state := waitIdle(t, respCh, PhaseDayDiscussion)
	assert.Equal(t, 2, state.Day)

	snap := snapshot(t, gm, respCh)
	assert.Equal(t, []string{"Kim", "Lee", "Jung", "Kang"}, aliveNames(snap.Characters))
	assert.Contains(t, snap.Dialogue, DialogueEntry{Speaker: "Park", SpeakerID: idPark, Message: "Goodbye, team."})
	assert.Contains(t, messages(snap.Dialogue), "Next morning, Choi's desk is empty. Reason: Saw too much.")
	assert.Contains(t, messages(snap.Dialogue), "=== Day 2 ===")

	// 第二天投出 Jung，夜晚 Kang 出局，只剩一名同事
	voteOut(t, gm, respCh, idJung)

	end := waitFor(t, respCh, func(resp ResponseWrapper) bool {
		return resp.RespType == RESP_GAME_RESULT
	}).Data.(GameResultNotification)

	assert.Equal(t, VerdictLose, end.Verdict)
	assert.Equal(t, PhaseEndLose, end.Stage)
	assert.Equal(t, "Kim", end.VillainName)
	assert.Equal(t, []string{"Kim", "Lee"}, aliveNames(end.Characters))

	snap = snapshot(t, gm, respCh)
	assert.Equal(t, PhaseEndLose, snap.State.Stage)
	assert.Contains(t, snap.Dialogue, DialogueEntry{Speaker: "Jung", SpeakerID: idJung, Message: fallbackFarewell})

	// 结束阶段只接受重新开始
	submit(t, gm, REQ_BEGIN_VOTING, nil)
	assert.Equal(t, ErrWrongPhase.Error(), waitError(t, respCh))

	orc.AssertExpectations(t)
}

func TestGameMachine_VotingOutVillainWins(t *testing.T) {
	orc := &MockOracle{}
	expectSetup(orc)

	orc.On("GetVoteProposals", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]oracle.VoteProposal{
			{Voter: "Kim", Votee: "Park"},
			{Voter: "Park", Votee: "Kim"},
			{Voter: "Choi", Votee: "Kim"},
		}, nil).Once()
	orc.On("GetEliminationFarewell", mock.Anything, mock.Anything, "Kim").Return("You got me.", nil).Once()

	gm, respCh := startMachine(t, newTestDeps(orc))

	submit(t, gm, REQ_START_GAME, nil)
	waitIdle(t, respCh, PhaseDayDiscussion)
	voteOut(t, gm, respCh, idKim)

	end := waitFor(t, respCh, func(resp ResponseWrapper) bool {
		return resp.RespType == RESP_GAME_RESULT
	}).Data.(GameResultNotification)

	assert.Equal(t, VerdictWin, end.Verdict)
	assert.Equal(t, 1, end.Day)
	assert.Equal(t, idKim, end.VillainID)
	require.Len(t, end.Characters, len(testSeeds))
	assert.Equal(t, oracle.RoleVillainText, end.Characters[0].Role)
	assert.Equal(t, oracle.RoleColleagueText, end.Characters[2].Role)

	orc.AssertNotCalled(t, "GetNightProposal", mock.Anything, mock.Anything)
	orc.AssertExpectations(t)
}

func TestGameMachine_HungVoteGoesToNight(t *testing.T) {
	orc := &MockOracle{}
	expectSetup(orc)

	orc.On("GetVoteProposals", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]oracle.VoteProposal{{Voter: "Kim", Votee: "Choi"}}, nil).Once()
	orc.On("GetNightProposal", mock.Anything, mock.Anything).
		Return(&oracle.NightProposal{Eliminated: "Lee", Reason: "The player."}, nil).Once()

	deps := newTestDeps(orc)
	gm, respCh := startMachine(t, deps)

	submit(t, gm, REQ_START_GAME, nil)
	waitIdle(t, respCh, PhaseDayDiscussion)
	voteOut(t, gm, respCh, idPark)

	result := waitFor(t, respCh, func(resp ResponseWrapper) bool {
		return resp.RespType == RESP_VOTE_RESULT
	}).Data.(VoteResultNotification)
	assert.True(t, result.Hung)

	waitIdle(t, respCh, PhaseDayDiscussion)

	// 玩家不是合法的夜晚目标，随机选择一名同事
	snap := snapshot(t, gm, respCh)
	assert.Len(t, aliveNames(snap.Characters), 5)
	assert.Contains(t, aliveNames(snap.Characters), "Lee")
	assert.Contains(t, aliveNames(snap.Characters), "Kim")
	assert.Contains(t, messages(snap.Dialogue), "The vote is tied. Nobody is eliminated today.")

	orc.AssertNotCalled(t, "GetEliminationFarewell", mock.Anything, mock.Anything, mock.Anything)
}

func TestGameMachine_SurvivesOracleOutage(t *testing.T) {
	outage := errors.New("service unavailable")

	orc := &MockOracle{}
	orc.On("SetupGame", mock.Anything, mock.Anything).Return(nil, outage)
	orc.On("GenerateDayIntro", mock.Anything, mock.Anything, mock.Anything).Return(nil, outage)
	orc.On("GetQuestionResponse", mock.Anything, mock.Anything, mock.Anything).Return("", outage)
	orc.On("GetVoteProposals", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, outage)
	orc.On("GetEliminationFarewell", mock.Anything, mock.Anything, mock.Anything).Return("", outage)
	orc.On("GetNightProposal", mock.Anything, mock.Anything).Return(nil, outage)

	gm, respCh := startMachine(t, newTestDeps(orc))

	submit(t, gm, REQ_START_GAME, nil)
	waitIdle(t, respCh, PhaseDayDiscussion)

	snap := snapshot(t, gm, respCh)
	require.Len(t, snap.Characters, len(fallbackCharacters))
	assert.Equal(t, "Kim Minjun", snap.Characters[0].Name)
	assert.Equal(t, fallbackBackground, snap.Background)

	msgs := messages(snap.Dialogue)
	assert.Contains(t, msgs, "You are UX/UI Designer Lee Seoyeon. Your role is 'Good Colleague'. Find the office villain.")
	assert.Contains(t, msgs, "Incident: "+fallbackIncident)
	assert.Len(t, snap.Dialogue, 2+2+len(fallbackCharacters))

	submit(t, gm, REQ_ASK_QUESTION, AskQuestionRequest{Question: "Where were you?", CharacterID: idPark})
	waitFor(t, respCh, func(resp ResponseWrapper) bool {
		d, ok := resp.Data.(DialogueNotification)
		return resp.RespType == RESP_DIALOGUE && ok && len(d.Entries) == 1 &&
			d.Entries[0] == DialogueEntry{Speaker: "Park Dohyun", SpeakerID: idPark, Message: fallbackAnswer}
	})

	// 投票失败时由随机投票补上，游戏继续进行
	waitIdle(t, respCh, PhaseDayDiscussion)
	voteOut(t, gm, respCh, idChoi)
	waitFor(t, respCh, func(resp ResponseWrapper) bool {
		return resp.RespType == RESP_VOTE_RESULT
	})

	waitFor(t, respCh, func(resp ResponseWrapper) bool {
		state, ok := resp.Data.(GameStateNotification)
		return resp.RespType == RESP_GAME_STATE && ok && !state.Busy &&
			(state.Stage == PhaseDayDiscussion || state.Stage.IsTerminal())
	})
}

func TestGameMachine_RejectsActionsWhileBusy(t *testing.T) {
	release := make(chan time.Time)

	orc := &MockOracle{}
	expectSetup(orc)
	orc.On("GetQuestionResponse", mock.Anything, mock.Anything, "Where were you last night?").
		WaitUntil(release).
		Return("  At the gym.  ", nil).Once()

	gm, respCh := startMachine(t, newTestDeps(orc))

	submit(t, gm, REQ_START_GAME, nil)
	waitIdle(t, respCh, PhaseDayDiscussion)

	// 未选择角色时不能提问
	submit(t, gm, REQ_ASK_QUESTION, AskQuestionRequest{Question: "Hello?"})
	assert.Equal(t, ErrNoSelection.Error(), waitError(t, respCh))

	submit(t, gm, REQ_SELECT_CHARACTER, SelectCharacterRequest{CharacterID: idLee})
	assert.Equal(t, ErrInvalidTarget.Error(), waitError(t, respCh))

	submit(t, gm, REQ_SELECT_CHARACTER, SelectCharacterRequest{CharacterID: idPark})
	submit(t, gm, REQ_ASK_QUESTION, AskQuestionRequest{Question: "Where were you last night?"})

	waitFor(t, respCh, func(resp ResponseWrapper) bool {
		state, ok := resp.Data.(GameStateNotification)
		return resp.RespType == RESP_GAME_STATE && ok && state.Busy
	})

	submit(t, gm, REQ_ASK_QUESTION, AskQuestionRequest{Question: "And you?", CharacterID: idChoi})
	assert.Equal(t, ErrBusy.Error(), waitError(t, respCh))

	submit(t, gm, REQ_BEGIN_VOTING, nil)
	assert.Equal(t, ErrBusy.Error(), waitError(t, respCh))

	close(release)

	waitFor(t, respCh, func(resp ResponseWrapper) bool {
		d, ok := resp.Data.(DialogueNotification)
		return resp.RespType == RESP_DIALOGUE && ok && len(d.Entries) == 1 && d.Entries[0].Speaker == "Park"
	})

	state := waitIdle(t, respCh, PhaseDayDiscussion)
	assert.Equal(t, []string{idPark}, state.Questioned)

	snap := snapshot(t, gm, respCh)
	assert.Contains(t, messages(snap.Dialogue), "At the gym.")
	assert.Contains(t, messages(snap.Dialogue), "You asked Park: Where were you last night?")

	// 同一天只能向同一角色提问一次
	submit(t, gm, REQ_ASK_QUESTION, AskQuestionRequest{Question: "Really?"})
	assert.Equal(t, ErrAlreadyQuestioned.Error(), waitError(t, respCh))

	orc.AssertExpectations(t)
}

func TestGameMachine_RestartDiscardsInFlightResults(t *testing.T) {
	release := make(chan time.Time)

	orc := &MockOracle{}
	expectSetup(orc)
	orc.On("GetQuestionResponse", mock.Anything, mock.Anything, mock.Anything).
		WaitUntil(release).
		Return("stale answer", nil).Once()

	gm, respCh := startMachine(t, newTestDeps(orc))

	submit(t, gm, REQ_START_GAME, nil)
	waitIdle(t, respCh, PhaseDayDiscussion)

	submit(t, gm, REQ_ASK_QUESTION, AskQuestionRequest{Question: "Anything?", CharacterID: idKang})
	submit(t, gm, REQ_RESTART, nil)

	snap := waitFor(t, respCh, func(resp ResponseWrapper) bool {
		s, ok := resp.Data.(SnapshotNotification)
		return resp.RespType == RESP_SNAPSHOT && ok && s.State.Stage == PhaseWelcome
	}).Data.(SnapshotNotification)

	assert.Empty(t, snap.Dialogue)
	assert.Empty(t, snap.Characters)
	assert.Equal(t, 1, snap.State.Day)
	assert.False(t, snap.State.Busy)

	close(release)

	submit(t, gm, REQ_START_GAME, nil)
	waitIdle(t, respCh, PhaseDayDiscussion)

	snap = snapshot(t, gm, respCh)
	assert.NotContains(t, messages(snap.Dialogue), "stale answer")
	assert.Empty(t, snap.State.Questioned)
}

func TestGameMachine_StopsOnRosterInvariantViolation(t *testing.T) {
	orc := &MockOracle{}
	expectSetup(orc)

	deps := newTestDeps(orc)
	deps.NewID = func() string { return "duplicate" }

	gm, respCh := startMachine(t, deps)

	submit(t, gm, REQ_START_GAME, nil)

	msg := waitError(t, respCh)
	assert.Contains(t, msg, ErrRosterInvariant.Error())

	select {
	case <-gm.Done():
	case <-time.After(waitTimeout):
		require.FailNow(t, "game machine kept running")
	}

	assert.False(t, gm.Submit(RequestWrapper{ReqType: REQ_START_GAME}))
}

func TestGameMachine_AttachReplacesConnection(t *testing.T) {
	orc := &MockOracle{}
	gm, first := startMachine(t, newTestDeps(orc))

	second := make(chan ResponseWrapper, 16)
	require.True(t, gm.Submit(RequestWrapper{
		ReqType:    REQ_ATTACH,
		NativeData: &AttachRequest{RespCh: second},
	}))

	resp := waitFor(t, second, func(resp ResponseWrapper) bool {
		return resp.RespType == RESP_SNAPSHOT
	})
	assert.Equal(t, PhaseWelcome, resp.Data.(SnapshotNotification).State.Stage)

	// 旧连接的通道被关闭
	deadline := time.After(waitTimeout)
	for closed := false; !closed; {
		select {
		case _, ok := <-first:
			closed = !ok
		case <-deadline:
			require.FailNow(t, "old response channel was not closed")
		}
	}

	// 旧连接的 Detach 不影响新连接
	require.True(t, gm.Submit(RequestWrapper{ReqType: REQ_DETACH, NativeData: &DetachRequest{RespCh: first}}))
	submit(t, gm, REQ_SNAPSHOT, nil)
	waitFor(t, second, func(resp ResponseWrapper) bool {
		return resp.RespType == RESP_SNAPSHOT
	})
}
