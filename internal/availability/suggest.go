package availability

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// SuggestQuery describes a multi-provider booking search.
type SuggestQuery struct {
	Skill   string
	FromUTC time.Time
	ToUTC   time.Time

	// Duration, when positive, searches for any continuous sub-window of
	// this length inside [FromUTC, ToUTC) instead of requiring the whole
	// window to be free.
	Duration time.Duration

	// OnlyFits keeps providers whose availability fully satisfies the query.
	OnlyFits bool

	// AllowPartial keeps providers with some overlapping free time.
	AllowPartial bool

	// IncludeUnavailable keeps providers with no free time at all; dropped
	// by default.
	IncludeUnavailable bool
}

// Suggestion is one ranked provider in a suggestion result.
type Suggestion struct {
	Provider    Provider
	Fits        bool
	Partial     bool
	FreeMinutes int
	Score       int
}

// Score weights: a full fit always outranks a partial overlap, which outranks
// no availability; free minutes inside the window break ties so providers with
// more buffer surface first.
const scoreClassWeight = 1 << 20

// SuggestProviders evaluates the availability pipeline for every active
// provider with the requested skill and ranks the outcomes. Ranking is
// deterministic for identical inputs: stable sort by score, then provider id.
func (e *Engine) SuggestProviders(ctx context.Context, q SuggestQuery) ([]Suggestion, error) {
	ctx, span := availabilityTracer.Start(ctx, "availability.suggest")
	defer span.End()
	span.SetAttributes(
		attribute.String("console.skill", q.Skill),
		attribute.String("console.from", q.FromUTC.Format(time.RFC3339)),
		attribute.String("console.to", q.ToUTC.Format(time.RFC3339)),
	)
	start := time.Now()
	defer func() { e.metrics.ObserveCompute("suggest", time.Since(start).Seconds()) }()

	if !q.FromUTC.Before(q.ToUTC) {
		return nil, ErrInvalidRange
	}
	if q.Duration < 0 || q.Duration > q.ToUTC.Sub(q.FromUTC) {
		return nil, ErrInvalidRange
	}

	providers, err := e.directory.ListActiveBySkill(ctx, q.Skill)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	e.metrics.ObserveSuggestCandidates(len(providers))
	if len(providers) == 0 {
		return nil, nil
	}

	// Bounded fan-out; results land in fixed positions so goroutine
	// scheduling never affects the final ordering.
	workers := e.opts.SuggestWorkers
	if workers > len(providers) {
		workers = len(providers)
	}
	results := make([]Suggestion, len(providers))
	errs := make([]error, len(providers))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i], errs[i] = e.evaluateProvider(ctx, providers[i], q)
			}
		}()
	}
	for i := range providers {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
	}

	out := make([]Suggestion, 0, len(results))
	for _, s := range results {
		switch {
		case s.Fits:
		case s.Partial:
			if q.OnlyFits || !q.AllowPartial {
				continue
			}
		default:
			if !q.IncludeUnavailable || q.OnlyFits {
				continue
			}
		}
		out = append(out, s)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Provider.ID < out[j].Provider.ID
	})
	return out, nil
}

func (e *Engine) evaluateProvider(ctx context.Context, p Provider, q SuggestQuery) (Suggestion, error) {
	ranges, err := e.ComputeAvailability(ctx, p.ID, q.FromUTC, q.ToUTC, nil)
	if err != nil {
		return Suggestion{}, err
	}

	var class Classification
	if q.Duration > 0 {
		class = classifyDuration(ranges, q.Duration)
	} else {
		class = ClassifyWindow(ranges, q.FromUTC, q.ToUTC)
	}

	free := 0
	for _, r := range ranges {
		for _, s := range r.Slots {
			free += int(s.Duration() / time.Minute)
		}
	}

	s := Suggestion{
		Provider:    p,
		Fits:        class == Fits,
		Partial:     class == Partial,
		FreeMinutes: free,
	}
	switch class {
	case Fits:
		s.Score = 2*scoreClassWeight + free
	case Partial:
		s.Score = scoreClassWeight + free
	default:
		s.Score = free
	}
	return s, nil
}

// classifyDuration maps duration searches onto the classification scale: a
// range long enough to hold the appointment is a fit, any free time at all is
// a partial, nothing free is unavailable.
func classifyDuration(ranges []SlotRange, d time.Duration) Classification {
	for _, r := range ranges {
		if r.Duration() >= d {
			return Fits
		}
	}
	if len(ranges) > 0 {
		return Partial
	}
	return Unavailable
}
