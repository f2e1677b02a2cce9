package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulsetrack/api/models"
)

// fakeTraffic answers the two windows the detector asks for: the trailing
// hour and the same window a day earlier.
type fakeTraffic struct {
	now      time.Time
	current  int64
	baseline int64
}

func (f *fakeTraffic) CountActive(ctx context.Context, from, to time.Time) (int64, error) {
	if to.Equal(f.now) {
		return f.current, nil
	}
	return f.baseline, nil
}

type fakeAlertRepo struct {
	alerts    []models.Alert
	dedupKeys map[string]bool
	recent    bool
}

func newFakeAlertRepo() *fakeAlertRepo {
	return &fakeAlertRepo{dedupKeys: make(map[string]bool)}
}

func (f *fakeAlertRepo) HasRecent(ctx context.Context, alertType string, since time.Time) (bool, error) {
	return f.recent, nil
}

func (f *fakeAlertRepo) Create(ctx context.Context, a *models.Alert, dedupKey string) (bool, error) {
	if f.dedupKeys[dedupKey] {
		return false, nil
	}
	f.dedupKeys[dedupKey] = true
	f.alerts = append(f.alerts, *a)
	return true, nil
}

func (f *fakeAlertRepo) ListRecent(ctx context.Context, limit int) ([]models.Alert, error) {
	if len(f.alerts) > limit {
		return f.alerts[:limit], nil
	}
	return f.alerts, nil
}

func (f *fakeAlertRepo) MarkRead(ctx context.Context, id string) error { return nil }

type fakeSettings struct {
	threshold float64
}

func (f fakeSettings) Float(ctx context.Context, key string, def float64) float64 {
	if f.threshold != 0 {
		return f.threshold
	}
	return def
}

type recordingNotifier struct {
	sent []string
	err  error
}

func (r *recordingNotifier) Send(ctx context.Context, text string) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, text)
	return nil
}

func newTestDetector(traffic *fakeTraffic, alerts *fakeAlertRepo, settings fakeSettings, notifier *recordingNotifier) *Detector {
	d := NewDetector(traffic, alerts, settings, notifier, func() string { return "alert-1" })
	d.now = func() time.Time { return traffic.now }
	return d
}

func TestCheckAndAlert_SpikeRaisesAlert(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	traffic := &fakeTraffic{now: now, current: 12, baseline: 5}
	alerts := newFakeAlertRepo()
	notifier := &recordingNotifier{}
	d := newTestDetector(traffic, alerts, fakeSettings{}, notifier)

	status, raised, err := d.CheckAndAlert(context.Background())
	require.NoError(t, err)

	// 12 > 5 * 2.0 and above the floor of 10.
	require.Len(t, raised, 1)
	assert.Equal(t, models.AlertTypeAnomaly, raised[0].Type)
	assert.Equal(t, models.SeverityWarning, raised[0].Severity)
	assert.Contains(t, raised[0].Message, "12 sessions")
	assert.Contains(t, raised[0].Message, "baseline 5")

	assert.Equal(t, models.TrafficHigh, status.TrafficStatus)
	assert.Equal(t, int64(12), status.CurrentLoad)
	assert.Equal(t, int64(5), status.Baseline)

	require.Len(t, notifier.sent, 1)
	assert.Equal(t, raised[0].Message, notifier.sent[0])
}

func TestCheckAndAlert_FloorSuppressesLowTraffic(t *testing.T) {
	// 8 visitors is above 0 * anything but below the floor of 10.
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	traffic := &fakeTraffic{now: now, current: 8, baseline: 0}
	alerts := newFakeAlertRepo()
	notifier := &recordingNotifier{}
	d := newTestDetector(traffic, alerts, fakeSettings{}, notifier)

	status, raised, err := d.CheckAndAlert(context.Background())
	require.NoError(t, err)
	assert.Empty(t, raised)
	assert.Empty(t, alerts.alerts)
	assert.Empty(t, notifier.sent)

	// The informational status still reports high; its multiplier is
	// independent of the alerting floor.
	assert.Equal(t, models.TrafficHigh, status.TrafficStatus)
}

func TestCheckAndAlert_BelowThresholdIsNormal(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	traffic := &fakeTraffic{now: now, current: 14, baseline: 10}
	d := newTestDetector(traffic, newFakeAlertRepo(), fakeSettings{}, &recordingNotifier{})

	status, raised, err := d.CheckAndAlert(context.Background())
	require.NoError(t, err)
	assert.Empty(t, raised)
	// 14 < 10 * 1.5, so the status stays normal too.
	assert.Equal(t, models.TrafficNormal, status.TrafficStatus)
}

func TestCheckAndAlert_StatusHighWithoutAlert(t *testing.T) {
	// 16 exceeds 10 * 1.5 for the status but not 10 * 2.0 for alerting.
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	traffic := &fakeTraffic{now: now, current: 16, baseline: 10}
	d := newTestDetector(traffic, newFakeAlertRepo(), fakeSettings{}, &recordingNotifier{})

	status, raised, err := d.CheckAndAlert(context.Background())
	require.NoError(t, err)
	assert.Empty(t, raised)
	assert.Equal(t, models.TrafficHigh, status.TrafficStatus)
}

func TestCheckAndAlert_ThresholdOverrideFromSettings(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	traffic := &fakeTraffic{now: now, current: 16, baseline: 10}
	alerts := newFakeAlertRepo()
	// 150% threshold makes 16 vs 10 alert-worthy.
	d := newTestDetector(traffic, alerts, fakeSettings{threshold: 150}, &recordingNotifier{})

	_, raised, err := d.CheckAndAlert(context.Background())
	require.NoError(t, err)
	assert.Len(t, raised, 1)
}

func TestCheckAndAlert_CooldownDedup(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	traffic := &fakeTraffic{now: now, current: 50, baseline: 5}
	alerts := newFakeAlertRepo()
	notifier := &recordingNotifier{}
	d := newTestDetector(traffic, alerts, fakeSettings{}, notifier)
	ctx := context.Background()

	_, first, err := d.CheckAndAlert(ctx)
	require.NoError(t, err)
	require.Len(t, first, 1)

	// Second check inside the cooldown: HasRecent now reports true.
	alerts.recent = true
	_, second, err := d.CheckAndAlert(ctx)
	require.NoError(t, err)
	assert.Empty(t, second)

	assert.Len(t, alerts.alerts, 1)
	assert.Len(t, notifier.sent, 1)
}

func TestCheckAndAlert_DedupKeyGuardsRace(t *testing.T) {
	// Both checks pass HasRecent (stale read) but the bucketed key lets
	// only one insert win, and only the winner notifies.
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	traffic := &fakeTraffic{now: now, current: 50, baseline: 5}
	alerts := newFakeAlertRepo()
	notifier := &recordingNotifier{}
	d := newTestDetector(traffic, alerts, fakeSettings{}, notifier)
	ctx := context.Background()

	_, first, err := d.CheckAndAlert(ctx)
	require.NoError(t, err)
	_, second, err := d.CheckAndAlert(ctx)
	require.NoError(t, err)

	assert.Len(t, first, 1)
	assert.Empty(t, second)
	assert.Len(t, alerts.alerts, 1)
	assert.Len(t, notifier.sent, 1)
}

func TestCheckAndAlert_NotifyFailureIsSwallowed(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	traffic := &fakeTraffic{now: now, current: 50, baseline: 5}
	alerts := newFakeAlertRepo()
	notifier := &recordingNotifier{err: errors.New("telegram unreachable")}
	d := newTestDetector(traffic, alerts, fakeSettings{}, notifier)

	_, raised, err := d.CheckAndAlert(context.Background())
	require.NoError(t, err)
	// The alert is persisted even though delivery failed.
	assert.Len(t, raised, 1)
	assert.Len(t, alerts.alerts, 1)
}
