package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"pulsetrack/api/models"
	"pulsetrack/api/store"
)

// funnelWindow is the fixed trailing window every step is counted over.
const funnelWindow = 30 * 24 * time.Hour

// FunnelRepo provides funnel definitions.
type FunnelRepo interface {
	Active(ctx context.Context) (*models.Funnel, error)
	Create(ctx context.Context, f *models.Funnel) error
}

// SessionCounter approximates home-page visits as session starts.
type SessionCounter interface {
	CountSessionStarts(ctx context.Context, since time.Time) (int64, error)
}

// StepCounter counts distinct visitors matching a funnel step target.
type StepCounter interface {
	CountVisitorsByPagePrefix(ctx context.Context, prefix string, since time.Time) (int64, error)
	CountVisitorsByActivityType(ctx context.Context, activityType string, since time.Time) (int64, error)
}

// Evaluator computes per-step distinct-visitor counts for the active
// funnel.
//
// Known limitation: each step is counted independently over the window.
// Nothing verifies a visitor reached step i after step i-1, so this is an
// approximation of a sequential funnel, not the real thing.
type Evaluator struct {
	funnels    FunnelRepo
	sessions   SessionCounter
	activities StepCounter
	newID      IDSource
	now        func() time.Time
}

func NewEvaluator(funnels FunnelRepo, sessions SessionCounter, activities StepCounter, newID IDSource) *Evaluator {
	return &Evaluator{
		funnels:    funnels,
		sessions:   sessions,
		activities: activities,
		newID:      newID,
		now:        time.Now,
	}
}

// Evaluate returns the active funnel's name and evaluated steps, seeding
// the default funnel first if none exists.
func (e *Evaluator) Evaluate(ctx context.Context) (string, []models.FunnelStepResult, error) {
	funnel, err := e.funnels.Active(ctx)
	if errors.Is(err, store.ErrNotFound) {
		funnel = e.defaultFunnel()
		if err := e.funnels.Create(ctx, funnel); err != nil {
			return "", nil, fmt.Errorf("failed to seed default funnel: %w", err)
		}
	} else if err != nil {
		return "", nil, err
	}

	since := e.now().Add(-funnelWindow)
	counts := make([]int64, len(funnel.Steps))
	for i, step := range funnel.Steps {
		count, err := e.countStep(ctx, step, since)
		if err != nil {
			return "", nil, fmt.Errorf("failed to count funnel step %q: %w", step.Name, err)
		}
		counts[i] = count
	}

	results := make([]models.FunnelStepResult, len(funnel.Steps))
	for i, step := range funnel.Steps {
		results[i] = models.FunnelStepResult{
			Name:           step.Name,
			Count:          counts[i],
			ConversionRate: conversionRate(counts, i),
			DropOff:        dropOff(counts, i),
		}
	}
	return funnel.Name, results, nil
}

func (e *Evaluator) countStep(ctx context.Context, step models.FunnelStep, since time.Time) (int64, error) {
	switch step.Type {
	case models.StepTypePage:
		if step.Target == "/" {
			// Home-page visits approximated as any session start.
			return e.sessions.CountSessionStarts(ctx, since)
		}
		return e.activities.CountVisitorsByPagePrefix(ctx, step.Target, since)
	case models.StepTypeActivity:
		return e.activities.CountVisitorsByActivityType(ctx, step.Target, since)
	default:
		return 0, fmt.Errorf("unknown step type %q", step.Type)
	}
}

// conversionRate is the percentage of first-step visitors reaching step i.
// The first step is 100% by definition, or 0% when it counted nobody.
func conversionRate(counts []int64, i int) float64 {
	if counts[0] == 0 {
		return 0
	}
	if i == 0 {
		return 100
	}
	return round1(float64(counts[i]) / float64(counts[0]) * 100)
}

// dropOff is the percentage decrease from the previous step.
func dropOff(counts []int64, i int) float64 {
	if i == 0 || counts[i-1] == 0 {
		return 0
	}
	return round1(float64(counts[i-1]-counts[i]) / float64(counts[i-1]) * 100)
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}

// defaultFunnel is seeded when no active funnel exists: home, blog index,
// article pages, then any reaction.
func (e *Evaluator) defaultFunnel() *models.Funnel {
	return &models.Funnel{
		ID:   e.newID(),
		Name: "Content conversion",
		Steps: []models.FunnelStep{
			{Name: "Home visit", Type: models.StepTypePage, Target: "/"},
			{Name: "Blog visit", Type: models.StepTypePage, Target: "/posts"},
			{Name: "Article read", Type: models.StepTypePage, Target: "/posts/"},
			{Name: "Interaction", Type: models.StepTypeActivity, Target: models.ActivityReaction},
		},
		IsActive:  true,
		CreatedAt: e.now(),
	}
}
