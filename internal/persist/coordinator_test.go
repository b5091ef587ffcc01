package persist

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kruplan/kruplan/internal/events"
	"github.com/kruplan/kruplan/internal/remote"
	"github.com/kruplan/kruplan/internal/schedule"
	"github.com/kruplan/kruplan/internal/storage"
)

type fixture struct {
	store *schedule.Store
	mem   *storage.MemStore
	mock  *remote.MockClient
	bus   *events.Bus
	coord *Coordinator
}

// startCoordinator builds the full wiring, runs prep for seeding, then
// starts Run in the background and waits for the initial load.
func startCoordinator(t *testing.T, owner string, quiet time.Duration, prep func(*fixture)) *fixture {
	t.Helper()

	f := &fixture{
		mem:  storage.NewMemStore(),
		mock: remote.NewMockClient(),
		bus:  events.NewBus(),
	}
	f.store = schedule.NewStore(f.bus)

	if prep != nil {
		prep(f)
	}

	var err error
	f.coord, err = NewCoordinator(f.store, f.mem, f.mock, f.bus, Config{QuietWindow: quiet})
	require.NoError(t, err)

	if owner != "" {
		f.coord.SetOwner(owner)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = f.coord.Run(ctx) }()

	select {
	case <-f.coord.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("coordinator never became ready")
	}
	return f
}

func rawSheets(t *testing.T, sheets ...schedule.Sheet) []json.RawMessage {
	t.Helper()
	out := make([]json.RawMessage, 0, len(sheets))
	for _, s := range sheets {
		data, err := json.Marshal(s)
		require.NoError(t, err)
		out = append(out, data)
	}
	return out
}

func seedLocalMirror(t *testing.T, mem *storage.MemStore, sheets ...schedule.Sheet) {
	t.Helper()
	data, err := json.Marshal(sheets)
	require.NoError(t, err)
	require.NoError(t, mem.Set(storage.MirrorKey, data))
}

func sheetNames(st *schedule.Store) []string {
	var names []string
	for _, s := range st.Sheets() {
		names = append(names, s.Name)
	}
	return names
}

// savedSlotCodes decodes the last payload saved to the mock remote and
// collects every slot's subject code.
func savedSlotCodes(t *testing.T, mock *remote.MockClient, owner string) []string {
	t.Helper()
	var codes []string
	for _, entry := range mock.SavedSheets(owner) {
		var sheet schedule.Sheet
		require.NoError(t, json.Unmarshal(entry, &sheet))
		for _, slot := range sheet.Slots {
			codes = append(codes, slot.SubjectCode)
		}
	}
	return codes
}

func TestLoadPrefersLocalMirror(t *testing.T) {
	f := startCoordinator(t, "owner-1", time.Hour, func(f *fixture) {
		seedLocalMirror(t, f.mem, schedule.NewSheet("from-local", ""))
		f.mock.SeedSheets("owner-1", rawSheets(t, schedule.NewSheet("from-remote", "")))
	})

	require.Eventually(t, func() bool {
		names := sheetNames(f.store)
		return len(names) == 1 && names[0] == "from-local"
	}, 2*time.Second, 5*time.Millisecond)

	require.Equal(t, 0, f.mock.Calls().LoadSheets, "remote sheets must not be fetched when a local mirror exists")
	require.True(t, f.coord.Loaded())
	require.Equal(t, StatusSaved, f.coord.Status())
}

func TestLoadFallsBackToRemoteAndMirrors(t *testing.T) {
	f := startCoordinator(t, "owner-1", time.Hour, func(f *fixture) {
		f.mock.SeedSheets("owner-1", rawSheets(t, schedule.NewSheet("from-remote", "")))
	})

	require.Eventually(t, func() bool {
		names := sheetNames(f.store)
		return len(names) == 1 && names[0] == "from-remote"
	}, 2*time.Second, 5*time.Millisecond)

	// Remote-sourced data must land in the local mirror right away.
	require.Eventually(t, func() bool {
		data, ok, err := f.mem.Get(storage.MirrorKey)
		if err != nil || !ok {
			return false
		}
		var sheets []schedule.Sheet
		return json.Unmarshal(data, &sheets) == nil && len(sheets) == 1 && sheets[0].Name == "from-remote"
	}, 2*time.Second, 5*time.Millisecond)
}

func TestLoadDefaultsWhenNothingStored(t *testing.T) {
	f := startCoordinator(t, "", time.Hour, nil)

	sheets := f.store.Sheets()
	require.Len(t, sheets, 1)
	require.Equal(t, schedule.DefaultSheetName, sheets[0].Name)
	require.True(t, f.coord.Loaded())
	require.Equal(t, StatusSaved, f.coord.Status())
}

func TestRemoteConfigOverlaysLoadedSheets(t *testing.T) {
	overlay := schedule.Config{
		SchoolInfo:    schedule.SchoolInfo{StartTime: "07:45", EndTime: "17:00", MinutesPerPeriod: 50},
		PeriodConfigs: schedule.GeneratePeriods("07:45", "17:00", 50),
		DayConfigs:    schedule.DefaultDays(),
	}
	f := startCoordinator(t, "owner-1", time.Hour, func(f *fixture) {
		seedLocalMirror(t, f.mem, schedule.NewSheet("from-local", ""))
		f.mock.SeedConfig("owner-1", overlay)
	})

	require.Eventually(t, func() bool {
		sheets := f.store.Sheets()
		return len(sheets) == 1 && sheets[0].SchoolInfo == overlay.SchoolInfo
	}, 2*time.Second, 5*time.Millisecond)
}

func TestBurstOfChangesCoalescesIntoOneSave(t *testing.T) {
	f := startCoordinator(t, "owner-1", 40*time.Millisecond, nil)

	f.store.AddSubject(schedule.Subject{ID: "sub-1", Code: "MATH", Name: "คณิตศาสตร์"})
	f.store.UpdateSlot(schedule.Slot{Day: "Monday", Period: 1, SubjectCode: "MATH"})
	f.store.UpdateSlot(schedule.Slot{Day: "Monday", Period: 2, SubjectCode: "MATH"})
	f.store.UpdateSlot(schedule.Slot{Day: "Tuesday", Period: 1, SubjectCode: "MATH"})

	require.Eventually(t, func() bool {
		return f.mock.Calls().SaveSheets == 1 && f.coord.Status() == StatusSaved
	}, 2*time.Second, 5*time.Millisecond)

	// The burst is quiet now; no further saves may fire.
	time.Sleep(120 * time.Millisecond)
	require.Equal(t, 1, f.mock.Calls().SaveSheets)
	require.Equal(t, 0, f.mock.Calls().SaveConfig, "config was untouched and must not be re-saved")

	// The single save carries the state after the whole burst,
	// including the last mutation.
	raw := f.mock.SavedSheets("owner-1")
	require.Len(t, raw, 1)
	var sheet schedule.Sheet
	require.NoError(t, json.Unmarshal(raw[0], &sheet))
	require.Len(t, sheet.Slots, 3)
	last := false
	for _, slot := range sheet.Slots {
		if slot.Day == "Tuesday" && slot.Period == 1 {
			last = true
		}
	}
	require.True(t, last, "saved payload must include the final slot of the burst")
}

func TestConfigSavedOnlyWhenChanged(t *testing.T) {
	f := startCoordinator(t, "owner-1", 40*time.Millisecond, nil)

	f.store.UpdateSchoolInfo(schedule.SchoolInfo{StartTime: "09:00", EndTime: "15:00", MinutesPerPeriod: 45})
	require.Eventually(t, func() bool {
		return f.mock.Calls().SaveConfig == 1 && f.coord.Status() == StatusSaved
	}, 2*time.Second, 5*time.Millisecond)

	f.store.UpdateSlot(schedule.Slot{Day: "Monday", Period: 1, SubjectCode: "ENG"})
	require.Eventually(t, func() bool {
		return f.mock.Calls().SaveSheets == 2 && f.coord.Status() == StatusSaved
	}, 2*time.Second, 5*time.Millisecond)

	require.Equal(t, 1, f.mock.Calls().SaveConfig, "unchanged config must not be re-saved")
}

func TestSaveFailureSetsErrorAndNextChangeRetries(t *testing.T) {
	f := startCoordinator(t, "owner-1", 40*time.Millisecond, func(f *fixture) {
		f.mock.SetFailSaveSheets(errors.New("backend down"))
	})

	f.store.UpdateSlot(schedule.Slot{Day: "Monday", Period: 1, SubjectCode: "SCI"})
	require.Eventually(t, func() bool {
		return f.coord.Status() == StatusError
	}, 2*time.Second, 5*time.Millisecond)

	f.mock.SetFailSaveSheets(nil)
	f.store.UpdateSlot(schedule.Slot{Day: "Monday", Period: 2, SubjectCode: "SCI"})
	require.Eventually(t, func() bool {
		return f.coord.Status() == StatusSaved
	}, 2*time.Second, 5*time.Millisecond)
}

func TestConfigSnapshotAdvancesOnlyOnSuccess(t *testing.T) {
	f := startCoordinator(t, "owner-1", 40*time.Millisecond, func(f *fixture) {
		f.mock.SetFailSaveConfig(errors.New("backend down"))
	})

	f.store.UpdateSchoolInfo(schedule.SchoolInfo{StartTime: "09:00", EndTime: "15:00", MinutesPerPeriod: 45})
	require.Eventually(t, func() bool {
		return f.coord.Status() == StatusError
	}, 2*time.Second, 5*time.Millisecond)

	f.mock.SetFailSaveConfig(nil)
	f.store.UpdateSlot(schedule.Slot{Day: "Monday", Period: 1, SubjectCode: "ART"})
	require.Eventually(t, func() bool {
		return f.coord.Status() == StatusSaved
	}, 2*time.Second, 5*time.Millisecond)

	// The failed attempt must not have advanced the snapshot, so the
	// config is retried on the next flush.
	require.Equal(t, 2, f.mock.Calls().SaveConfig)
}

func TestNoRemoteSaveWithoutOwner(t *testing.T) {
	f := startCoordinator(t, "", 30*time.Millisecond, nil)

	f.store.UpdateSlot(schedule.Slot{Day: "Monday", Period: 1, SubjectCode: "MATH"})

	// Local mirror still updates on every change.
	require.Eventually(t, func() bool {
		return f.mem.Calls().Set >= 1
	}, 2*time.Second, 5*time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	require.Equal(t, 0, f.mock.Calls().SaveSheets)
	require.Equal(t, StatusSaved, f.coord.Status())
}

func TestOwnerChangeCancelsPendingDebounceAndReloads(t *testing.T) {
	f := startCoordinator(t, "owner-a", 150*time.Millisecond, nil)

	require.Eventually(t, func() bool { return f.coord.Owner() == "owner-a" }, 2*time.Second, 5*time.Millisecond)

	f.store.UpdateSlot(schedule.Slot{Day: "Monday", Period: 1, SubjectCode: "MATH"})
	require.Eventually(t, func() bool {
		return f.coord.Status() == StatusUnsaved
	}, 2*time.Second, 5*time.Millisecond)

	f.coord.SetOwner("owner-b")
	require.Eventually(t, func() bool { return f.coord.Owner() == "owner-b" }, 2*time.Second, 5*time.Millisecond)

	// Past the original quiet window: the pending save must be gone.
	time.Sleep(250 * time.Millisecond)
	require.Equal(t, 0, f.mock.Calls().SaveSheets)
	require.Equal(t, StatusSaved, f.coord.Status())
	require.True(t, f.coord.Loaded())
}

func TestFlushIfUnsavedPushesPendingChanges(t *testing.T) {
	f := startCoordinator(t, "owner-1", time.Hour, nil)

	f.store.UpdateSlot(schedule.Slot{Day: "Monday", Period: 1, SubjectCode: "MATH"})
	require.Eventually(t, func() bool {
		return f.coord.Status() == StatusUnsaved
	}, 2*time.Second, 5*time.Millisecond)

	f.coord.FlushIfUnsaved()

	require.Eventually(t, func() bool {
		return f.mock.Calls().SaveSheets == 1 && f.coord.Status() == StatusSaved
	}, 2*time.Second, 5*time.Millisecond)
}

func TestFlushIfUnsavedIsNoopWhenSaved(t *testing.T) {
	f := startCoordinator(t, "owner-1", time.Hour, nil)

	f.coord.FlushIfUnsaved()
	require.Equal(t, 0, f.mock.Calls().SaveSheets)
}

func TestDefaultLoadWritesLocalMirror(t *testing.T) {
	f := startCoordinator(t, "", time.Hour, nil)

	data, ok, err := f.mem.Get(storage.MirrorKey)
	require.NoError(t, err)
	require.True(t, ok, "a defaults-sourced load must be mirrored immediately")

	var sheets []schedule.Sheet
	require.NoError(t, json.Unmarshal(data, &sheets))
	require.Len(t, sheets, 1)
	require.Equal(t, f.store.Sheets()[0].ID, sheets[0].ID, "the created sheet id must survive a restart")
}

// gatedClient holds SaveSheets at a gate and records whether two saves
// ever ran at the same time.
type gatedClient struct {
	*remote.MockClient
	gate       chan struct{}
	entered    atomic.Int32
	inFlight   atomic.Bool
	overlapped atomic.Bool
}

func (g *gatedClient) SaveSheets(ctx context.Context, owner string, sheets []schedule.Sheet) error {
	if !g.inFlight.CompareAndSwap(false, true) {
		g.overlapped.Store(true)
	}
	defer g.inFlight.Store(false)
	g.entered.Add(1)
	<-g.gate
	return g.MockClient.SaveSheets(ctx, owner, sheets)
}

func TestSlowSaveDoesNotLoseLaterChanges(t *testing.T) {
	mem := storage.NewMemStore()
	gated := &gatedClient{MockClient: remote.NewMockClient(), gate: make(chan struct{})}
	bus := events.NewBus()
	store := schedule.NewStore(bus)

	coord, err := NewCoordinator(store, mem, gated, bus, Config{QuietWindow: 30 * time.Millisecond})
	require.NoError(t, err)
	coord.SetOwner("owner-1")

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = coord.Run(ctx) }()
	select {
	case <-coord.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("coordinator never became ready")
	}

	sched, err := NewScheduler(coord, nil)
	require.NoError(t, err)
	_, err = sched.SchedulePeriodicFlush(20 * time.Millisecond)
	require.NoError(t, err)
	sched.Start()
	t.Cleanup(func() { _ = sched.Stop() })

	store.UpdateSlot(schedule.Slot{Day: "Monday", Period: 1, SubjectCode: "HIST"})

	// The first save is now held at the gate.
	require.Eventually(t, func() bool {
		return gated.entered.Load() >= 1
	}, 2*time.Second, 5*time.Millisecond)

	// A further edit lands while that save is still in flight.
	store.UpdateSlot(schedule.Slot{Day: "Monday", Period: 2, SubjectCode: "GEO"})
	close(gated.gate)

	require.Eventually(t, func() bool {
		return gated.Calls().SaveSheets >= 2 && coord.Status() == StatusSaved
	}, 3*time.Second, 10*time.Millisecond)

	codes := savedSlotCodes(t, gated.MockClient, "owner-1")
	require.Contains(t, codes, "GEO", "the edit made during the slow save must reach the remote")
	require.False(t, gated.overlapped.Load(), "remote saves must never run concurrently")
}

func TestSchedulerPeriodicFlush(t *testing.T) {
	f := startCoordinator(t, "owner-1", time.Hour, nil)

	sched, err := NewScheduler(f.coord, nil)
	require.NoError(t, err)
	_, err = sched.SchedulePeriodicFlush(30 * time.Millisecond)
	require.NoError(t, err)
	sched.Start()
	t.Cleanup(func() { _ = sched.Stop() })

	f.store.UpdateSlot(schedule.Slot{Day: "Friday", Period: 3, SubjectCode: "PE"})

	require.Eventually(t, func() bool {
		return f.mock.Calls().SaveSheets >= 1 && f.coord.Status() == StatusSaved
	}, 3*time.Second, 10*time.Millisecond)
}
