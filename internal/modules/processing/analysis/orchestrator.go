package analysis

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rationable/api/internal/models"
	"github.com/rationable/api/internal/modules/content/decision"
	"github.com/rationable/api/internal/modules/storage/cache"
)

const (
	maxDilemmaRunes = 2000

	defaultCriteriaCount = 5
	minCriteriaCount     = 3
	maxCriteriaCount     = 8
	defaultOptionCount   = 4
	maxOptionCount       = 8
)

// ResultCache stores option results between runs. *cache.Cache satisfies it.
type ResultCache interface {
	Get(ctx context.Context, key string, out interface{}) error
	Set(ctx context.Context, key string, value interface{}) error
}

type Option func(*Orchestrator)

func WithCache(c ResultCache) Option { return func(o *Orchestrator) { o.cache = c } }

func WithEnricher(e Enricher) Option { return func(o *Orchestrator) { o.enricher = e } }

func WithStore(s Store) Option { return func(o *Orchestrator) { o.store = s } }

// WithCriteriaCount sets how many criteria are requested when the caller does not say.
func WithCriteriaCount(n int) Option {
	return func(o *Orchestrator) { o.criteriaCount = clamp(n, minCriteriaCount, maxCriteriaCount) }
}

func WithOptionCount(n int) Option {
	return func(o *Orchestrator) { o.optionCount = clamp(n, 2, maxOptionCount) }
}

// WithRevealInterval sets the pause between revealed criteria. Zero reveals them at once.
func WithRevealInterval(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d >= 0 {
			o.reveal = d
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Orchestrator runs the emoji, criteria and options phases for one dilemma at a time per
// call. It holds no per-run state, so concurrent runs are independent.
type Orchestrator struct {
	gen           Generator
	cache         ResultCache
	enricher      Enricher
	store         Store
	criteriaCount int
	optionCount   int
	reveal        time.Duration
	logger        *zap.Logger
}

func New(gen Generator, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		gen:           gen,
		criteriaCount: defaultCriteriaCount,
		optionCount:   defaultOptionCount,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Validate checks a request without running it.
func (o *Orchestrator) Validate(req Request) error {
	dilemma := strings.TrimSpace(req.Dilemma)
	if dilemma == "" {
		return ErrEmptyDilemma
	}
	if utf8.RuneCountInString(dilemma) > maxDilemmaRunes {
		return ErrDilemmaTooLong
	}
	if len(req.Criteria) > 0 && len(normalizeCriteria(req.Criteria, maxCriteriaCount)) == 0 {
		return ErrNoCriteria
	}
	return nil
}

type run struct {
	o   *Orchestrator
	obs Observer
}

func (r *run) emit(t EventType, data interface{}) { r.obs.Observe(Event{Type: t, Data: data}) }

func (r *run) enter(p Phase) { r.emit(EventPhase, p) }

func (r *run) fail(p Phase, err error) error {
	r.o.logger.Warn("analysis failed", zap.String("phase", string(p)), zap.Error(err))
	r.enter(PhaseIdle)
	r.emit(EventError, ErrorPayload{Phase: p, Message: err.Error()})
	return &PhaseError{Phase: p, Err: err}
}

// Run executes the pipeline, reporting every step to obs. On failure the phase drops back to
// idle, an error event is emitted and nothing is persisted. Cancelling ctx aborts the run at
// the next generation call or reveal pause.
func (o *Orchestrator) Run(ctx context.Context, req Request, obs Observer) (*models.DecisionModel, error) {
	return o.run(ctx, req, nil, obs)
}

// Reanalyze scores the options of an existing decision again against edited criteria. The
// original is left untouched; the result is a new decision pointing at it.
func (o *Orchestrator) Reanalyze(ctx context.Context, ownerID, decisionID string, in ReanalyzeRequest, obs Observer) (*models.DecisionModel, error) {
	if o.store == nil {
		return nil, ErrNoStore
	}
	parent, err := o.store.Get(ctx, decisionID, ownerID)
	if err != nil {
		return nil, err
	}
	req := Request{
		Dilemma:     parent.Dilemma,
		Criteria:    in.Criteria,
		Language:    in.Language,
		WorkspaceID: parent.WorkspaceID,
		OwnerID:     ownerID,
	}
	return o.run(ctx, req, parent, obs)
}

func (o *Orchestrator) run(ctx context.Context, req Request, parent *models.DecisionModel, obs Observer) (*models.DecisionModel, error) {
	if obs == nil {
		obs = ObserverFunc(func(Event) {})
	}
	r := &run{o: o, obs: obs}
	if err := o.Validate(req); err != nil {
		return nil, r.fail(PhaseIdle, err)
	}
	dilemma := strings.TrimSpace(req.Dilemma)
	classic := len(req.Criteria) > 0

	r.enter(PhaseEmoji)
	var emoji string
	if parent != nil && parent.Emoji != "" {
		emoji = parent.Emoji
	} else {
		var err error
		if emoji, err = o.gen.Emoji(ctx, dilemma); err != nil {
			return nil, r.fail(PhaseEmoji, err)
		}
	}
	r.emit(EventEmoji, emoji)

	r.enter(PhaseCriteria)
	var criteria []models.Criterion
	if classic {
		criteria = normalizeCriteria(req.Criteria, maxCriteriaCount)
	} else {
		n := o.criteriaCount
		if req.CriteriaCount > 0 {
			n = clamp(req.CriteriaCount, minCriteriaCount, maxCriteriaCount)
		}
		names, err := o.gen.Criteria(ctx, dilemma, n, req.Language)
		if err != nil {
			return nil, r.fail(PhaseCriteria, err)
		}
		criteria = criteriaFromNames(names, n)
		if len(criteria) == 0 {
			return nil, r.fail(PhaseCriteria, ErrNoCriteria)
		}
	}
	for i, c := range criteria {
		if i > 0 {
			if err := o.pause(ctx); err != nil {
				return nil, r.fail(PhaseCriteria, err)
			}
		}
		r.emit(EventCriterion, c)
	}

	r.enter(PhaseOptions)
	result, err := o.options(ctx, dilemma, criteria, req.Language)
	if err != nil {
		return nil, r.fail(PhaseOptions, err)
	}
	if o.enricher != nil {
		o.enricher.Enrich(ctx, dilemma, result)
	}
	r.emit(EventResult, result)

	d := &models.DecisionModel{
		OwnerID:     req.OwnerID,
		WorkspaceID: req.WorkspaceID,
		Dilemma:     dilemma,
		Emoji:       emoji,
		Mode:        models.ModeProgressive,
		Criteria:    criteria,
		Result:      *result,
	}
	if classic {
		d.Mode = models.ModeClassic
	}
	if parent != nil {
		d.ParentID = &parent.ID
	}
	if o.store != nil && req.OwnerID != "" {
		if err := o.store.Create(ctx, d); err != nil {
			return nil, r.fail(PhaseOptions, err)
		}
	}

	r.enter(PhaseDone)
	r.emit(EventDone, d)
	return d, nil
}

func (o *Orchestrator) options(ctx context.Context, dilemma string, criteria []models.Criterion, lang string) (*models.Result, error) {
	key := cache.DecisionKey(dilemma, criteriaParts(criteria))
	if lang = strings.TrimSpace(lang); lang != "" {
		key = cache.Key(key, lang)
	}

	if o.cache != nil {
		var cached models.Result
		err := o.cache.Get(ctx, key, &cached)
		if err == nil && len(cached.Breakdown) > 0 {
			o.logger.Debug("decision cache hit", zap.String("key", key))
			return &cached, nil
		}
		if err != nil && !errors.Is(err, cache.ErrMiss) {
			o.logger.Warn("decision cache read failed", zap.Error(err))
		}
	}

	result, err := o.gen.Options(ctx, dilemma, criteria, o.optionCount, lang)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, ErrNoOptions
	}
	normalizeResult(result)
	if len(result.Breakdown) == 0 {
		return nil, ErrNoOptions
	}

	if o.cache != nil {
		if err := o.cache.Set(ctx, key, result); err != nil {
			o.logger.Warn("decision cache write failed", zap.Error(err))
		}
	}
	return result, nil
}

func (o *Orchestrator) pause(ctx context.Context) error {
	if o.reveal <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(o.reveal)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// normalizeCriteria trims names, drops blanks and case-insensitive duplicates, fills missing
// ids and defaults weights to 1.
func normalizeCriteria(in []models.Criterion, limit int) []models.Criterion {
	out := make([]models.Criterion, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, c := range in {
		c.Name = strings.TrimSpace(c.Name)
		if c.Name == "" {
			continue
		}
		k := strings.ToLower(c.Name)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		if c.ID == "" {
			c.ID = uuid.New().String()
		}
		if c.Weight <= 0 {
			c.Weight = 1
		}
		out = append(out, c)
		if len(out) == limit {
			break
		}
	}
	return out
}

// criteriaParts renders each criterion as name and weight, so a weight edit scores again.
func criteriaParts(criteria []models.Criterion) []string {
	parts := make([]string, len(criteria))
	for i, c := range criteria {
		w := c.Weight
		if w <= 0 {
			w = 1
		}
		parts[i] = c.Name + "|w=" + strconv.FormatFloat(w, 'g', -1, 64)
	}
	return parts
}

func criteriaFromNames(names []string, limit int) []models.Criterion {
	in := make([]models.Criterion, len(names))
	for i, n := range names {
		in[i] = models.Criterion{Name: n}
	}
	return normalizeCriteria(in, limit)
}

// normalizeResult clamps scores to 0..100, drops unnamed options, ranks the breakdown and
// falls back to the top option when the recommendation is blank.
func normalizeResult(r *models.Result) {
	kept := r.Breakdown[:0]
	for _, b := range r.Breakdown {
		b.Option = strings.TrimSpace(b.Option)
		if b.Option == "" {
			continue
		}
		b.Score = clamp(b.Score, 0, 100)
		b.Pros = compact(b.Pros)
		b.Cons = compact(b.Cons)
		kept = append(kept, b)
	}
	r.Breakdown = kept
	decision.Rank(r)
	if strings.TrimSpace(r.Recommendation) == "" && len(r.Breakdown) > 0 {
		r.Recommendation = r.Breakdown[0].Option
	}
}

func compact(items []string) []string {
	out := make([]string, 0, len(items))
	for _, s := range items {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
