package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulsetrack/api/models"
	"pulsetrack/api/store"
)

type fakeFunnelRepo struct {
	funnel  *models.Funnel
	created *models.Funnel
}

func (f *fakeFunnelRepo) Active(ctx context.Context) (*models.Funnel, error) {
	if f.funnel == nil {
		return nil, store.ErrNotFound
	}
	return f.funnel, nil
}

func (f *fakeFunnelRepo) Create(ctx context.Context, funnel *models.Funnel) error {
	f.created = funnel
	f.funnel = funnel
	return nil
}

// fakeStepCounts serves both the session-start count and per-target step
// counts.
type fakeStepCounts struct {
	sessionStarts int64
	byPrefix      map[string]int64
	byActivity    map[string]int64
}

func (f *fakeStepCounts) CountSessionStarts(ctx context.Context, since time.Time) (int64, error) {
	return f.sessionStarts, nil
}

func (f *fakeStepCounts) CountVisitorsByPagePrefix(ctx context.Context, prefix string, since time.Time) (int64, error) {
	return f.byPrefix[prefix], nil
}

func (f *fakeStepCounts) CountVisitorsByActivityType(ctx context.Context, activityType string, since time.Time) (int64, error) {
	return f.byActivity[activityType], nil
}

func TestEvaluate_ConversionAndDropOff(t *testing.T) {
	repo := &fakeFunnelRepo{funnel: &models.Funnel{
		Name: "Signup",
		Steps: []models.FunnelStep{
			{Name: "Landing", Type: models.StepTypePage, Target: "/"},
			{Name: "Pricing", Type: models.StepTypePage, Target: "/pricing"},
			{Name: "Signup", Type: models.StepTypeActivity, Target: "signup"},
		},
		IsActive: true,
	}}
	counts := &fakeStepCounts{
		sessionStarts: 100,
		byPrefix:      map[string]int64{"/pricing": 40},
		byActivity:    map[string]int64{"signup": 10},
	}
	e := NewEvaluator(repo, counts, counts, func() string { return "f-1" })

	name, results, err := e.Evaluate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Signup", name)
	require.Len(t, results, 3)

	assert.Equal(t, int64(100), results[0].Count)
	assert.Equal(t, 100.0, results[0].ConversionRate)
	assert.Equal(t, 0.0, results[0].DropOff)

	assert.Equal(t, int64(40), results[1].Count)
	assert.Equal(t, 40.0, results[1].ConversionRate)
	assert.Equal(t, 60.0, results[1].DropOff)

	assert.Equal(t, int64(10), results[2].Count)
	assert.Equal(t, 10.0, results[2].ConversionRate)
	assert.Equal(t, 75.0, results[2].DropOff)
}

func TestEvaluate_SeedsDefaultFunnel(t *testing.T) {
	repo := &fakeFunnelRepo{}
	counts := &fakeStepCounts{
		sessionStarts: 50,
		byPrefix:      map[string]int64{"/posts": 20, "/posts/": 15},
		byActivity:    map[string]int64{models.ActivityReaction: 3},
	}
	e := NewEvaluator(repo, counts, counts, func() string { return "f-1" })

	name, results, err := e.Evaluate(context.Background())
	require.NoError(t, err)

	require.NotNil(t, repo.created, "missing funnel must be seeded")
	assert.True(t, repo.created.IsActive)
	assert.Equal(t, "f-1", repo.created.ID)
	assert.Equal(t, "Content conversion", name)

	require.Len(t, results, 4)
	assert.Equal(t, int64(50), results[0].Count)
	assert.Equal(t, int64(20), results[1].Count)
	assert.Equal(t, int64(15), results[2].Count)
	assert.Equal(t, int64(3), results[3].Count)
}

func TestEvaluate_EmptyFirstStep(t *testing.T) {
	repo := &fakeFunnelRepo{funnel: &models.Funnel{
		Name: "Empty",
		Steps: []models.FunnelStep{
			{Name: "Landing", Type: models.StepTypePage, Target: "/"},
			{Name: "Pricing", Type: models.StepTypePage, Target: "/pricing"},
		},
		IsActive: true,
	}}
	counts := &fakeStepCounts{}
	e := NewEvaluator(repo, counts, counts, func() string { return "f-1" })

	_, results, err := e.Evaluate(context.Background())
	require.NoError(t, err)

	// No division by zero: everything reports 0%.
	assert.Equal(t, 0.0, results[0].ConversionRate)
	assert.Equal(t, 0.0, results[1].ConversionRate)
	assert.Equal(t, 0.0, results[1].DropOff)
}

func TestEvaluate_RatesRoundedToOneDecimal(t *testing.T) {
	repo := &fakeFunnelRepo{funnel: &models.Funnel{
		Name: "Rounding",
		Steps: []models.FunnelStep{
			{Name: "A", Type: models.StepTypePage, Target: "/"},
			{Name: "B", Type: models.StepTypePage, Target: "/b"},
		},
		IsActive: true,
	}}
	counts := &fakeStepCounts{
		sessionStarts: 3,
		byPrefix:      map[string]int64{"/b": 1},
	}
	e := NewEvaluator(repo, counts, counts, func() string { return "f-1" })

	_, results, err := e.Evaluate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 33.3, results[1].ConversionRate)
	assert.Equal(t, 66.7, results[1].DropOff)
}
