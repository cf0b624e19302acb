package analysis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/rationable/api/internal/models"
	"github.com/rationable/api/internal/modules/storage/cache"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestRunProgressive(t *testing.T) {
	gen := newFakeGenerator()
	store := &fakeStore{}
	rc := cache.New(cache.NewMemoryStore())
	o := New(gen, WithCache(rc), WithStore(store))

	rec := &recorder{}
	d, err := o.Run(context.Background(), Request{Dilemma: "  Which car should I buy? ", OwnerID: "u1"}, rec)
	require.NoError(t, err)

	want := []Phase{PhaseEmoji, PhaseCriteria, PhaseOptions, PhaseDone}
	if diff := cmp.Diff(want, rec.phases()); diff != "" {
		t.Fatalf("phases (-want +got):\n%s", diff)
	}
	assert.Equal(t, []EventType{
		EventPhase, EventEmoji,
		EventPhase, EventCriterion, EventCriterion, EventCriterion,
		EventPhase, EventResult,
		EventPhase, EventDone,
	}, rec.types())

	assert.Equal(t, "Which car should I buy?", d.Dilemma)
	assert.Equal(t, "🚗", d.Emoji)
	assert.Equal(t, models.ModeProgressive, d.Mode)
	require.Len(t, d.Criteria, 3)
	assert.Equal(t, "Cost", d.Criteria[0].Name)
	assert.Equal(t, 1.0, d.Criteria[0].Weight)
	assert.NotEmpty(t, d.Criteria[0].ID)

	require.Len(t, d.Result.Breakdown, 3)
	assert.Equal(t, "Hybrid", d.Result.Breakdown[0].Option)
	assert.Equal(t, 100, d.Result.Breakdown[0].Score)
	assert.Equal(t, "Hybrid", d.Result.Recommendation)
	assert.Equal(t, []string{"cheap upfront"}, d.Result.Breakdown[2].Pros)

	require.Len(t, store.created, 1)
	assert.Equal(t, "u1", store.created[0].OwnerID)

	n, err := rc.Len(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRunClassicSkipsCriteriaGeneration(t *testing.T) {
	gen := newFakeGenerator()
	o := New(gen)

	d, err := o.Run(context.Background(), Request{
		Dilemma:  "Tea or coffee",
		Criteria: []models.Criterion{{Name: "Taste", Weight: 2}, {Name: "taste"}, {Name: "Caffeine"}},
	}, nil)
	require.NoError(t, err)

	criteriaCalls, _ := gen.calls()
	assert.Zero(t, criteriaCalls)
	assert.Equal(t, models.ModeClassic, d.Mode)
	require.Len(t, d.Criteria, 2)
	assert.Equal(t, 2.0, d.Criteria[0].Weight)
	assert.Equal(t, 1.0, d.Criteria[1].Weight)
}

func TestRunUsesCachedOptions(t *testing.T) {
	gen := newFakeGenerator()
	o := New(gen, WithCache(cache.New(cache.NewMemoryStore())))

	req := Request{Dilemma: "Which car should I buy?"}
	first, err := o.Run(context.Background(), req, nil)
	require.NoError(t, err)

	req.Dilemma = "which   CAR should I buy?"
	second, err := o.Run(context.Background(), req, nil)
	require.NoError(t, err)

	_, optionsCalls := gen.calls()
	assert.Equal(t, 1, optionsCalls)
	if diff := cmp.Diff(first.Result, second.Result); diff != "" {
		t.Fatalf("cached result (-first +second):\n%s", diff)
	}
}

func TestRunRescoresWhenOnlyWeightsChange(t *testing.T) {
	gen := newFakeGenerator()
	o := New(gen, WithCache(cache.New(cache.NewMemoryStore())))

	req := Request{Dilemma: "Which city?", Criteria: []models.Criterion{{Name: "Cost", Weight: 1}, {Name: "Safety", Weight: 1}}}
	_, err := o.Run(context.Background(), req, nil)
	require.NoError(t, err)

	// Zero weight defaults to 1, so this one is a hit.
	req.Criteria = []models.Criterion{{Name: "Cost"}, {Name: "Safety", Weight: 1}}
	_, err = o.Run(context.Background(), req, nil)
	require.NoError(t, err)
	_, optionsCalls := gen.calls()
	assert.Equal(t, 1, optionsCalls)

	req.Criteria = []models.Criterion{{Name: "Cost", Weight: 1}, {Name: "Safety", Weight: 5}}
	_, err = o.Run(context.Background(), req, nil)
	require.NoError(t, err)
	_, optionsCalls = gen.calls()
	assert.Equal(t, 2, optionsCalls)
	assert.Equal(t, 5.0, gen.lastCriteria[1].Weight)
}

func TestRunAnonymousIsNotPersisted(t *testing.T) {
	store := &fakeStore{}
	o := New(newFakeGenerator(), WithStore(store))
	_, err := o.Run(context.Background(), Request{Dilemma: "Move abroad?"}, nil)
	require.NoError(t, err)
	assert.Empty(t, store.created)
}

func TestRunFailureResetsToIdle(t *testing.T) {
	boom := errors.New("upstream exploded")
	cases := []struct {
		name  string
		setup func(*fakeGenerator)
		phase Phase
	}{
		{"emoji", func(g *fakeGenerator) { g.emojiErr = boom }, PhaseEmoji},
		{"criteria", func(g *fakeGenerator) { g.criteriaErr = boom }, PhaseCriteria},
		{"options", func(g *fakeGenerator) { g.optionsErr = boom }, PhaseOptions},
		{"no criteria", func(g *fakeGenerator) { g.criteria = []string{" ", ""} }, PhaseCriteria},
		{"no options", func(g *fakeGenerator) { g.result.Breakdown = nil }, PhaseOptions},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gen := newFakeGenerator()
			tc.setup(gen)
			store := &fakeStore{}
			rec := &recorder{}

			d, err := New(gen, WithStore(store)).Run(context.Background(), Request{Dilemma: "x", OwnerID: "u1"}, rec)
			require.Error(t, err)
			assert.Nil(t, d)

			var pe *PhaseError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tc.phase, pe.Phase)

			events := rec.events
			require.GreaterOrEqual(t, len(events), 2)
			assert.Equal(t, Event{Type: EventPhase, Data: PhaseIdle}, events[len(events)-2])
			last := events[len(events)-1]
			assert.Equal(t, EventError, last.Type)
			assert.Equal(t, tc.phase, last.Data.(ErrorPayload).Phase)
			assert.Empty(t, store.created)
		})
	}
}

func TestRunValidation(t *testing.T) {
	o := New(newFakeGenerator())
	_, err := o.Run(context.Background(), Request{Dilemma: "   "}, nil)
	assert.ErrorIs(t, err, ErrEmptyDilemma)

	_, err = o.Run(context.Background(), Request{Dilemma: "ok", Criteria: []models.Criterion{{Name: " "}}}, nil)
	assert.ErrorIs(t, err, ErrNoCriteria)
}

func TestRunCancelDuringReveal(t *testing.T) {
	gen := newFakeGenerator()
	o := New(gen, WithRevealInterval(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	obs := ObserverFunc(func(e Event) {
		if e.Type == EventCriterion {
			cancel()
		}
	})

	done := make(chan error, 1)
	go func() {
		_, err := o.Run(ctx, Request{Dilemma: "Which car should I buy?"}, obs)
		done <- err
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop after cancellation")
	}
	_, optionsCalls := gen.calls()
	assert.Zero(t, optionsCalls)
}

func TestRevealPacing(t *testing.T) {
	o := New(newFakeGenerator(), WithRevealInterval(20*time.Millisecond))
	var stamps []time.Time
	obs := ObserverFunc(func(e Event) {
		if e.Type == EventCriterion {
			stamps = append(stamps, time.Now())
		}
	})
	_, err := o.Run(context.Background(), Request{Dilemma: "x"}, obs)
	require.NoError(t, err)
	require.Len(t, stamps, 3)
	assert.GreaterOrEqual(t, stamps[2].Sub(stamps[0]), 40*time.Millisecond)
}

func TestReanalyze(t *testing.T) {
	gen := newFakeGenerator()
	store := &fakeStore{rows: map[string]*models.DecisionModel{
		"d1": {Base: models.Base{ID: "d1"}, OwnerID: "u1", Dilemma: "Which car?", Emoji: "🚙"},
	}}
	o := New(gen, WithStore(store))

	d, err := o.Reanalyze(context.Background(), "u1", "d1", ReanalyzeRequest{
		Criteria: []models.Criterion{{Name: "Safety"}},
	}, nil)
	require.NoError(t, err)
	require.NotNil(t, d.ParentID)
	assert.Equal(t, "d1", *d.ParentID)
	assert.Equal(t, "🚙", d.Emoji)
	assert.Equal(t, models.ModeClassic, d.Mode)
	assert.Equal(t, "Safety", gen.lastCriteria[0].Name)

	_, err = o.Reanalyze(context.Background(), "u2", "d1", ReanalyzeRequest{Criteria: []models.Criterion{{Name: "Safety"}}}, nil)
	assert.Error(t, err)
}

func TestReanalyzeWithoutStore(t *testing.T) {
	_, err := New(newFakeGenerator()).Reanalyze(context.Background(), "u1", "d1", ReanalyzeRequest{}, nil)
	assert.ErrorIs(t, err, ErrNoStore)
}
