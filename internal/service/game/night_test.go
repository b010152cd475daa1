package game

import (
	"errors"
	"testing"

	"office-villain-be/internal/oracle"

	"github.com/stretchr/testify/assert"
)

func TestNightEligible_ExcludesPlayerAndVillain(t *testing.T) {
	r := newTestRoster(t)
	mustEliminate(t, r, idPark)

	var ids []string
	for _, c := range NightEligible(r) {
		ids = append(ids, c.ID)
	}

	assert.Equal(t, []string{idChoi, idJung, idKang}, ids)
}

func TestResolveNight_AcceptsEligibleProposal(t *testing.T) {
	r := newTestRoster(t)

	outcome := ResolveNight(r, &oracle.NightProposal{Eliminated: "Jung", Reason: "knew too much"}, nil, newTestRng())

	assert.Equal(t, NightOutcome{TargetID: idJung, Reason: "knew too much"}, outcome)
}

func TestResolveNight_FallsBackOnIneligibleProposal(t *testing.T) {
	cases := map[string]struct {
		proposal *oracle.NightProposal
		err      error
	}{
		"player":  {proposal: &oracle.NightProposal{Eliminated: "Lee"}},
		"villain": {proposal: &oracle.NightProposal{Eliminated: "Kim"}},
		"dead":    {proposal: &oracle.NightProposal{Eliminated: "Park"}},
		"unknown": {proposal: &oracle.NightProposal{Eliminated: "Nobody"}},
		"empty":   {proposal: &oracle.NightProposal{}},
		"missing": {},
		"error":   {proposal: &oracle.NightProposal{Eliminated: "Jung"}, err: errors.New("boom")},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			r := newTestRoster(t)
			mustEliminate(t, r, idPark)

			outcome := ResolveNight(r, tc.proposal, tc.err, newTestRng())

			assert.True(t, outcome.Fallback)
			assert.Contains(t, []string{idChoi, idJung, idKang}, outcome.TargetID)

			target, _ := r.Get(outcome.TargetID)
			assert.Equal(t, fallbackNightReason(target.Name), outcome.Reason)
		})
	}
}

func TestResolveNight_NoopWithoutVillainOrTargets(t *testing.T) {
	r := newTestRoster(t)
	mustEliminate(t, r, idKim)

	assert.False(t, NeedsNightProposal(r))
	assert.True(t, ResolveNight(r, &oracle.NightProposal{Eliminated: "Park"}, nil, newTestRng()).IsNoop())

	r = newTestRoster(t)
	mustEliminate(t, r, idPark, idChoi, idJung, idKang)

	assert.False(t, NeedsNightProposal(r))
	assert.Equal(t, NightOutcome{}, ResolveNight(r, nil, nil, newTestRng()))
}

func TestResolveNight_FallbackIsUniform(t *testing.T) {
	r := newTestRoster(t)
	rng := newTestRng()

	hits := make(map[string]int)
	for range 3000 {
		hits[ResolveNight(r, nil, nil, rng).TargetID]++
	}

	assert.Len(t, hits, 4)
	for id, n := range hits {
		assert.InDelta(t, 750, n, 150, "target %s", id)
	}
}
