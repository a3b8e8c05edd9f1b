package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"smart_ventilation/internal/models"
	"smart_ventilation/internal/repository"
)

// fakeFanRepo keeps its fans in a slice so tests can hold two owners with
// the same device id, and LookupByDevice returns the first match the way
// the real table returns the lowest rowid.
type fakeFanRepo struct {
	fans       []models.Fan
	lookupErr  error
	applyErr   error
	applied    []models.Fan
	nextID     int64
	getByIDErr error
}

func (f *fakeFanRepo) Create(ctx context.Context, fan models.Fan) (int64, error) {
	for _, existing := range f.fans {
		if existing.UserID == fan.UserID && existing.DeviceID == fan.DeviceID {
			return 0, repository.ErrDuplicate
		}
	}
	f.nextID++
	fan.ID = f.nextID
	fan.Status = models.StatusOff
	f.fans = append(f.fans, fan)
	return fan.ID, nil
}
func (f *fakeFanRepo) ListByUser(ctx context.Context, userID int64) ([]models.Fan, error) {
	var out []models.Fan
	for _, fan := range f.fans {
		if fan.UserID == userID {
			out = append(out, fan)
		}
	}
	return out, nil
}
func (f *fakeFanRepo) GetByID(ctx context.Context, userID, fanID int64) (*models.Fan, error) {
	if f.getByIDErr != nil {
		return nil, f.getByIDErr
	}
	for _, fan := range f.fans {
		if fan.ID == fanID && fan.UserID == userID {
			cp := fan
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}
func (f *fakeFanRepo) LookupByDevice(ctx context.Context, q repository.Querier, deviceID string) (*models.Fan, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	for _, fan := range f.fans {
		if fan.DeviceID == deviceID {
			cp := fan
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}
func (f *fakeFanRepo) LookupByID(ctx context.Context, q repository.Querier, fanID int64) (*models.Fan, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	for _, fan := range f.fans {
		if fan.ID == fanID {
			cp := fan
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}
func (f *fakeFanRepo) ApplyTransition(ctx context.Context, q repository.Querier, fan models.Fan) error {
	if f.applyErr != nil {
		return f.applyErr
	}
	f.applied = append(f.applied, fan)
	for i := range f.fans {
		if f.fans[i].ID == fan.ID {
			f.fans[i] = fan
			return nil
		}
	}
	return repository.ErrNotFound
}

type fakeReadingRepo struct {
	appendErr error
	readings  []models.Reading
}

func (f *fakeReadingRepo) Append(ctx context.Context, q repository.Querier, r models.Reading) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.readings = append(f.readings, r)
	return nil
}
func (f *fakeReadingRepo) ListRecent(ctx context.Context, fanID int64, limit int) ([]models.Reading, error) {
	return f.readings, nil
}

type fakeRuntimeLogRepo struct {
	appendErr error
	entries   []models.RuntimeLogEntry
}

func (f *fakeRuntimeLogRepo) Append(ctx context.Context, q repository.Querier, e models.RuntimeLogEntry) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.entries = append(f.entries, e)
	return nil
}
func (f *fakeRuntimeLogRepo) List(ctx context.Context, fanID int64, from, to time.Time) ([]models.RuntimeLogEntry, error) {
	return f.entries, nil
}

// fakeTxRunner invokes fn with a nil tx and records whether the unit
// "committed" (fn returned nil).
type fakeTxRunner struct {
	committed  bool
	rolledBack bool
}

func (f *fakeTxRunner) WithinTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	if err := fn(nil); err != nil {
		f.rolledBack = true
		return err
	}
	f.committed = true
	return nil
}

type captureNotifier struct {
	updates []models.FanUpdate
}

func (c *captureNotifier) Publish(u models.FanUpdate) {
	c.updates = append(c.updates, u)
}

func newTestIngest(fans *fakeFanRepo) (*IngestService, *fakeReadingRepo, *fakeRuntimeLogRepo, *fakeTxRunner, *captureNotifier) {
	readings := &fakeReadingRepo{}
	rtlog := &fakeRuntimeLogRepo{}
	tx := &fakeTxRunner{}
	notifier := &captureNotifier{}
	svc := &IngestService{
		fans:       fans,
		readings:   readings,
		runtimeLog: rtlog,
		tx:         tx,
		notifier:   notifier,
		threshold:  400,
	}
	return svc, readings, rtlog, tx, notifier
}

func TestIngestEvent_CommitsAllThreeWrites(t *testing.T) {
	fans := &fakeFanRepo{fans: []models.Fan{
		{ID: 1, UserID: 1, DeviceID: "dev-1", Status: models.StatusOff},
	}}
	svc, readings, rtlog, tx, notifier := newTestIngest(fans)

	at := mustParse(t, "2026-03-10T14:00:00Z")
	update, err := svc.IngestEvent(context.Background(), models.TelemetryEvent{
		DeviceID: "dev-1", GasLevel: 450, MotorState: true, ObservedAt: at,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !tx.committed {
		t.Fatalf("expected transaction commit")
	}
	if len(readings.readings) != 1 {
		t.Fatalf("expected 1 reading, got %d", len(readings.readings))
	}
	if len(fans.applied) != 1 || fans.applied[0].Status != models.StatusOn {
		t.Fatalf("expected fan transitioned to ON, got %#v", fans.applied)
	}
	if len(rtlog.entries) != 1 {
		t.Fatalf("expected 1 runtime-log entry, got %d", len(rtlog.entries))
	}
	if update == nil || update.FanID != 1 || update.Status != models.StatusOn {
		t.Fatalf("unexpected update: %#v", update)
	}
	if len(notifier.updates) != 1 {
		t.Fatalf("expected 1 published update, got %d", len(notifier.updates))
	}
}

func TestIngestEvent_FanIDTargetsExactFan(t *testing.T) {
	// two accounts registered the same device id; an event carrying a
	// resolved fan id must hit that fan, not the first device-id match
	fans := &fakeFanRepo{fans: []models.Fan{
		{ID: 1, UserID: 1, DeviceID: "dev-1", Status: models.StatusOff},
		{ID: 2, UserID: 2, DeviceID: "dev-1", Status: models.StatusOff},
	}}
	svc, _, _, _, _ := newTestIngest(fans)

	at := mustParse(t, "2026-03-10T14:00:00Z")
	update, err := svc.IngestEvent(context.Background(), models.TelemetryEvent{
		FanID: 2, DeviceID: "dev-1", GasLevel: 450, MotorState: true, ObservedAt: at,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if update.FanID != 2 {
		t.Fatalf("expected update for fan 2, got %d", update.FanID)
	}
	if len(fans.applied) != 1 || fans.applied[0].ID != 2 {
		t.Fatalf("expected transition applied to fan 2, got %#v", fans.applied)
	}
	if fans.fans[0].Status != models.StatusOff {
		t.Fatalf("fan 1 must stay untouched, got status %q", fans.fans[0].Status)
	}
}

func TestIngestEvent_UnknownDeviceDroppedWithoutWrites(t *testing.T) {
	fans := &fakeFanRepo{}
	svc, readings, _, tx, notifier := newTestIngest(fans)

	_, err := svc.IngestEvent(context.Background(), models.TelemetryEvent{
		DeviceID: "ghost", GasLevel: 100, ObservedAt: time.Now(),
	})
	if !errors.Is(err, ErrUnknownDevice) {
		t.Fatalf("expected ErrUnknownDevice, got %v", err)
	}
	if tx.committed {
		t.Fatalf("expected rollback for unknown device")
	}
	if len(readings.readings) != 0 || len(notifier.updates) != 0 {
		t.Fatalf("unknown device must leave no trace")
	}
}

func TestIngestEvent_TransitionFailureRollsBack(t *testing.T) {
	fans := &fakeFanRepo{
		fans:     []models.Fan{{ID: 1, DeviceID: "dev-1", Status: models.StatusOff}},
		applyErr: errors.New("disk full"),
	}
	svc, _, rtlog, tx, notifier := newTestIngest(fans)

	_, err := svc.IngestEvent(context.Background(), models.TelemetryEvent{
		DeviceID: "dev-1", GasLevel: 450, MotorState: true, ObservedAt: time.Now(),
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if tx.committed || !tx.rolledBack {
		t.Fatalf("expected rollback, got committed=%v rolledBack=%v", tx.committed, tx.rolledBack)
	}
	if len(rtlog.entries) != 0 {
		t.Fatalf("runtime log must not be appended after transition failure")
	}
	if len(notifier.updates) != 0 {
		t.Fatalf("nothing may be published for a rolled-back event")
	}
}

func TestIngestEvent_RuntimeLogCarriesCreditedMinutes(t *testing.T) {
	onAt := mustParse(t, "2026-03-10T14:00:00Z")
	fans := &fakeFanRepo{fans: []models.Fan{
		{ID: 1, DeviceID: "dev-1", Status: models.StatusOn, LastOnAt: &onAt},
	}}
	svc, _, rtlog, _, _ := newTestIngest(fans)

	offAt := mustParse(t, "2026-03-10T14:10:00Z")
	_, err := svc.IngestEvent(context.Background(), models.TelemetryEvent{
		DeviceID: "dev-1", GasLevel: 200, MotorState: false, ObservedAt: offAt,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rtlog.entries) != 1 || rtlog.entries[0].CreditedMinutes != 10 {
		t.Fatalf("expected log entry with 10 credited minutes, got %#v", rtlog.entries)
	}
}

func TestIngestDirect_MalformedNeverReachesStorage(t *testing.T) {
	fans := &fakeFanRepo{}
	svc, readings, _, tx, _ := newTestIngest(fans)

	_, err := svc.IngestDirect(context.Background(), DirectReport{DeviceID: ""})
	if !errors.Is(err, ErrMalformedEvent) {
		t.Fatalf("expected ErrMalformedEvent, got %v", err)
	}
	if tx.committed || tx.rolledBack || len(readings.readings) != 0 {
		t.Fatalf("malformed report must not open a transaction")
	}
}
