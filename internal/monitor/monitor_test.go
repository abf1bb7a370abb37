package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/dolphin-iot/dolphin-core/internal/equipment"
	"github.com/dolphin-iot/dolphin-core/internal/infrastructure/logging"
)

// fakeRepo implements the repository methods the monitor touches.
type fakeRepo struct {
	equipment.Repository

	devices []equipment.Equipment
	latest  map[string]*equipment.Status
	updates []string // "AGL12=FAULT"
}

func (f *fakeRepo) ListActive(ctx context.Context) ([]equipment.Equipment, error) {
	return f.devices, nil
}

func (f *fakeRepo) LatestStatus(ctx context.Context, equipType string, id int) (*equipment.Status, error) {
	s, ok := f.latest[equipment.FormatID(equipType, id)]
	if !ok {
		return nil, equipment.ErrNoStatus
	}
	return s, nil
}

func (f *fakeRepo) UpdateState(ctx context.Context, equipType string, id int, state equipment.State) error {
	f.updates = append(f.updates, equipment.FormatID(equipType, id)+"="+string(state))
	return nil
}

type fakeNotifier struct {
	messages []string
}

func (f *fakeNotifier) Notify(message string) {
	f.messages = append(f.messages, message)
}

// sweepAt runs one sweep with the clock pinned to now.
func sweepAt(t *testing.T, repo *fakeRepo, now time.Time) *fakeNotifier {
	t.Helper()
	notifier := &fakeNotifier{}
	m := New(repo, notifier, time.Minute, logging.Default())
	m.now = func() time.Time { return now }
	if err := m.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	return notifier
}

func statusAt(receive time.Time) *equipment.Status {
	return &equipment.Status{ReceiveDate: receive}
}

func TestSweepMarksSilentDeviceFault(t *testing.T) {
	now := time.Date(2026, 8, 24, 10, 0, 0, 0, equipment.KST)
	repo := &fakeRepo{
		devices: []equipment.Equipment{
			{ID: 12, Type: "AGL", State: equipment.StateNormal, Interval: 60, Place: "교차로 A"},
		},
		latest: map[string]*equipment.Status{
			// 100 s of silence against a 90 s threshold.
			"AGL12": statusAt(now.Add(-100 * time.Second)),
		},
	}

	notifier := sweepAt(t, repo, now)

	if len(repo.updates) != 1 || repo.updates[0] != "AGL12=FAULT" {
		t.Errorf("updates = %v, want [AGL12=FAULT]", repo.updates)
	}
	if len(notifier.messages) != 1 {
		t.Fatalf("messages = %v, want one LTE fault", notifier.messages)
	}
	want := "'교차로 A' 장소에 설치된 장비(AGL-12) \n셀룰러(LTE) 오류가 발생했습니다."
	if notifier.messages[0] != want {
		t.Errorf("message = %q, want %q", notifier.messages[0], want)
	}
}

func TestSweepRecoversFaultedDevice(t *testing.T) {
	now := time.Date(2026, 8, 24, 10, 0, 0, 0, equipment.KST)
	repo := &fakeRepo{
		devices: []equipment.Equipment{
			{ID: 12, Type: "AGL", State: equipment.StateFault, Interval: 60, Place: "교차로 A"},
		},
		latest: map[string]*equipment.Status{
			"AGL12": statusAt(now.Add(-30 * time.Second)),
		},
	}

	notifier := sweepAt(t, repo, now)

	if len(repo.updates) != 1 || repo.updates[0] != "AGL12=NORMAL" {
		t.Errorf("updates = %v, want [AGL12=NORMAL]", repo.updates)
	}
	want := "'교차로 A' 장소에 설치된 장비(AGL-12) \n셀룰러(LTE)가 재개되었습니다."
	if len(notifier.messages) != 1 || notifier.messages[0] != want {
		t.Errorf("messages = %v, want [%q]", notifier.messages, want)
	}
}

func TestSweepSteadyStatesAreSilent(t *testing.T) {
	now := time.Date(2026, 8, 24, 10, 0, 0, 0, equipment.KST)
	repo := &fakeRepo{
		devices: []equipment.Equipment{
			// Fresh and NORMAL: nothing to do.
			{ID: 1, Type: "AGL", State: equipment.StateNormal, Interval: 60},
			// Silent but already FAULT: no repeat alert.
			{ID: 2, Type: "AGL", State: equipment.StateFault, Interval: 60},
		},
		latest: map[string]*equipment.Status{
			"AGL1": statusAt(now.Add(-30 * time.Second)),
			"AGL2": statusAt(now.Add(-500 * time.Second)),
		},
	}

	notifier := sweepAt(t, repo, now)

	if len(repo.updates) != 0 {
		t.Errorf("updates = %v, want none", repo.updates)
	}
	if len(notifier.messages) != 0 {
		t.Errorf("messages = %v, want none", notifier.messages)
	}
}

func TestSweepSkipsDevicesWithoutHistory(t *testing.T) {
	now := time.Date(2026, 8, 24, 10, 0, 0, 0, equipment.KST)
	repo := &fakeRepo{
		devices: []equipment.Equipment{
			{ID: 3, Type: "AGL", State: equipment.StateNormal, Interval: 60},
		},
		latest: map[string]*equipment.Status{},
	}

	notifier := sweepAt(t, repo, now)

	if len(repo.updates) != 0 || len(notifier.messages) != 0 {
		t.Errorf("no-history device acted on: updates=%v messages=%v",
			repo.updates, notifier.messages)
	}
}
