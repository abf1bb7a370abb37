package telemetry

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/dolphin-iot/dolphin-core/internal/baseline"
	"github.com/dolphin-iot/dolphin-core/internal/equipment"
	"github.com/dolphin-iot/dolphin-core/internal/infrastructure/logging"
)

// handlerRepo records writes and serves a fixed device table.
type handlerRepo struct {
	equipment.Repository

	devices  map[string]*equipment.Equipment
	statuses []*equipment.Status
	updates  []string
	displays []*equipment.DisplayDeviceInfo
}

func (f *handlerRepo) Get(ctx context.Context, equipType string, id int) (*equipment.Equipment, error) {
	dev, ok := f.devices[equipment.FormatID(equipType, id)]
	if !ok {
		return nil, equipment.ErrNotFound
	}
	copied := *dev
	return &copied, nil
}

func (f *handlerRepo) CreateStatus(ctx context.Context, status *equipment.Status) error {
	f.statuses = append(f.statuses, status)
	return nil
}

func (f *handlerRepo) UpdateState(ctx context.Context, equipType string, id int, state equipment.State) error {
	f.updates = append(f.updates, equipment.FormatID(equipType, id)+"="+string(state))
	return nil
}

func (f *handlerRepo) CreateDisplayInfo(ctx context.Context, info *equipment.DisplayDeviceInfo) error {
	f.displays = append(f.displays, info)
	return nil
}

type captureNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (c *captureNotifier) Notify(message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, message)
}

func (c *captureNotifier) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.messages...)
}

// newControllerFixture wires a handler over one known device with the
// standard test baselines published.
func newControllerFixture(t *testing.T, state equipment.State, exclude []string) (*ControllerHandler, *handlerRepo, *captureNotifier) {
	t.Helper()
	repo := &handlerRepo{
		devices: map[string]*equipment.Equipment{
			"AGL12": {ID: 12, Type: "AGL", Units: 4, State: state, Place: "교차로 A"},
		},
	}
	cache := baseline.NewCache()
	cache.Replace(testSnapshot(t))
	notifier := &captureNotifier{}
	h := NewControllerHandler(repo, cache, notifier, exclude, nil, logging.Default())
	return h, repo, notifier
}

func TestControllerHandle_NormalReport(t *testing.T) {
	h, repo, notifier := newControllerFixture(t, equipment.StateNormal, nil)

	payload := validPayload(map[int]string{2: "120", 3: "60", 5: "100", 6: "50"})
	if err := h.Handle(context.Background(), "AGL12/status/controller", []byte(payload)); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	if len(repo.statuses) != 1 {
		t.Fatalf("statuses = %d, want 1", len(repo.statuses))
	}
	s := repo.statuses[0]
	if s.State != equipment.StateNormal || s.Abnormal {
		t.Errorf("status = %+v, want NORMAL", s)
	}
	if s.AmpereRed != 120 || s.DutyRed != 100 || s.AmpereGreen != 60 || s.DutyGreen != 50 {
		t.Errorf("columnar fields = %+v", s)
	}
	if len(repo.updates) != 1 || repo.updates[0] != "AGL12=NORMAL" {
		t.Errorf("updates = %v", repo.updates)
	}
	if got := notifier.snapshot(); len(got) != 0 {
		t.Errorf("messages = %v, want none", got)
	}
}

func TestControllerHandle_ZeroRedCurrent(t *testing.T) {
	h, repo, notifier := newControllerFixture(t, equipment.StateNormal, nil)

	payload := validPayload(map[int]string{2: "0", 3: "60", 5: "100", 6: "50"})
	if err := h.Handle(context.Background(), "AGL12/status/controller", []byte(payload)); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	if repo.statuses[0].State != equipment.StateAbnormal {
		t.Errorf("status state = %v, want ABNORMAL", repo.statuses[0].State)
	}
	if repo.updates[0] != "AGL12=ETC" {
		t.Errorf("updates = %v, want AGL12=ETC", repo.updates)
	}
	got := notifier.snapshot()
	if len(got) != 1 || !strings.Contains(got[0], "적색등 비정상 전류") {
		t.Errorf("messages = %v, want one red alert", got)
	}
}

func TestControllerHandle_WrongFieldCountDropped(t *testing.T) {
	h, repo, notifier := newControllerFixture(t, equipment.StateNormal, nil)

	if err := h.Handle(context.Background(), "AGL12/status/controller",
		[]byte(strings.Repeat("1\n", 17)+"1")); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	if len(repo.statuses) != 0 || len(repo.updates) != 0 || len(notifier.snapshot()) != 0 {
		t.Error("18-field payload produced side effects")
	}
}

func TestControllerHandle_MalformedField(t *testing.T) {
	h, repo, notifier := newControllerFixture(t, equipment.StateNormal, nil)

	payload := validPayload(map[int]string{2: "notanumber"})
	if err := h.Handle(context.Background(), "AGL12/status/controller", []byte(payload)); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	if len(repo.statuses) != 1 {
		t.Fatalf("statuses = %d, want 1", len(repo.statuses))
	}
	s := repo.statuses[0]
	if s.State != equipment.StateAbnormal || !s.Abnormal {
		t.Errorf("status = %+v, want tainted ABNORMAL", s)
	}
	if repo.updates[0] != "AGL12=ETC" {
		t.Errorf("updates = %v", repo.updates)
	}
	got := notifier.snapshot()
	if len(got) != 1 || got[0] != "장비(AGL-12) 데이터 형식이 맞지가 않습니다." {
		t.Errorf("messages = %v, want malformed notice", got)
	}
}

func TestControllerHandle_UnknownDeviceDropped(t *testing.T) {
	h, repo, _ := newControllerFixture(t, equipment.StateNormal, nil)

	if err := h.Handle(context.Background(), "AGL99/status/controller",
		[]byte(validPayload(nil))); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if len(repo.statuses) != 0 {
		t.Error("unknown device persisted a status")
	}
}

func TestControllerHandle_InvalidTopicIDDropped(t *testing.T) {
	h, repo, _ := newControllerFixture(t, equipment.StateNormal, nil)

	for _, topic := range []string{"XYZ12/status/controller", "AGL/status/controller"} {
		if err := h.Handle(context.Background(), topic, []byte(validPayload(nil))); err != nil {
			t.Fatalf("Handle(%s) error = %v", topic, err)
		}
	}
	if len(repo.statuses) != 0 {
		t.Error("invalid topic id persisted a status")
	}
}

func TestControllerHandle_FaultRecoveryNotice(t *testing.T) {
	h, _, notifier := newControllerFixture(t, equipment.StateFault, nil)

	payload := validPayload(map[int]string{2: "120", 3: "60", 5: "100", 6: "50"})
	if err := h.Handle(context.Background(), "AGL12/status/controller", []byte(payload)); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	got := notifier.snapshot()
	if len(got) != 1 || !strings.Contains(got[0], "셀룰러(LTE)가 재개되었습니다") {
		t.Errorf("messages = %v, want recovery notice", got)
	}
}

func TestControllerHandle_ExclusionSuppressesAlerts(t *testing.T) {
	h, repo, notifier := newControllerFixture(t, equipment.StateNormal, []string{"AGL12"})

	payload := validPayload(map[int]string{2: "0", 3: "60", 5: "100", 6: "50"})
	if err := h.Handle(context.Background(), "AGL12/status/controller", []byte(payload)); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	// Persistence and state transitions still happen; only the SMS is
	// suppressed.
	if len(repo.statuses) != 1 || repo.statuses[0].State != equipment.StateAbnormal {
		t.Errorf("statuses = %+v", repo.statuses)
	}
	if got := notifier.snapshot(); len(got) != 0 {
		t.Errorf("messages = %v, want suppressed", got)
	}
}

// recordingSink captures metrics mirror writes.
type recordingSink struct {
	currents []string
	temps    []string
}

func (s *recordingSink) WriteChannelCurrent(deviceID, channel string, ampere, perUnit float64, duty int) {
	s.currents = append(s.currents, deviceID+"/"+channel)
}

func (s *recordingSink) WriteTemperature(deviceID string, celsius float64) {
	s.temps = append(s.temps, deviceID)
}

func TestControllerHandle_MetricsMirror(t *testing.T) {
	repo := &handlerRepo{
		devices: map[string]*equipment.Equipment{
			"AGL12": {ID: 12, Type: "AGL", Units: 4, State: equipment.StateNormal, Place: "교차로 A"},
		},
	}
	sink := &recordingSink{}
	h := NewControllerHandler(repo, baseline.NewCache(), &captureNotifier{}, nil, sink, logging.Default())

	payload := validPayload(map[int]string{2: "120", 3: "60", 5: "100", 6: "50"})
	if err := h.Handle(context.Background(), "AGL12/status/controller", []byte(payload)); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	if len(sink.currents) != 2 || sink.currents[0] != "AGL12/red" || sink.currents[1] != "AGL12/green" {
		t.Errorf("currents = %v", sink.currents)
	}
	if len(sink.temps) != 1 {
		t.Errorf("temps = %v", sink.temps)
	}
}
