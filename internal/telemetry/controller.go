package telemetry

import (
	"context"
	"errors"
	"strings"

	"github.com/dolphin-iot/dolphin-core/internal/alert"
	"github.com/dolphin-iot/dolphin-core/internal/baseline"
	"github.com/dolphin-iot/dolphin-core/internal/equipment"
	"github.com/dolphin-iot/dolphin-core/internal/infrastructure/logging"
)

// Notifier queues one alert message for broadcast.
type Notifier interface {
	Notify(message string)
}

// MetricsSink mirrors classified telemetry into a time-series store. The
// mirror is optional and best-effort; implementations must never block.
type MetricsSink interface {
	WriteChannelCurrent(deviceID, channel string, ampere, perUnit float64, duty int)
	WriteTemperature(deviceID string, celsius float64)
}

// ControllerHandler processes +/status/controller messages.
type ControllerHandler struct {
	repo     equipment.Repository
	cache    *baseline.Cache
	notifier Notifier
	logger   *logging.Logger

	// exclude holds canonical device ids whose classification alerts
	// are suppressed.
	exclude map[string]bool

	// metrics is nil when the mirror is disabled.
	metrics MetricsSink
}

// NewControllerHandler wires a controller-status handler.
func NewControllerHandler(
	repo equipment.Repository,
	cache *baseline.Cache,
	notifier Notifier,
	excludeDevices []string,
	metrics MetricsSink,
	logger *logging.Logger,
) *ControllerHandler {
	exclude := make(map[string]bool, len(excludeDevices))
	for _, id := range excludeDevices {
		exclude[id] = true
	}
	return &ControllerHandler{
		repo:     repo,
		cache:    cache,
		notifier: notifier,
		logger:   logger.With("component", "controller"),
		exclude:  exclude,
		metrics:  metrics,
	}
}

// Handle parses, classifies and persists one controller status message.
//
// Messages with a wrong field count, an invalid device id, or an unknown
// device are dropped without a record. Every surviving message produces
// exactly one EquipmentStatus row.
func (h *ControllerHandler) Handle(ctx context.Context, topic string, payload []byte) error {
	text := string(payload)
	h.logger.Info("controller status received",
		"topic", topic,
		"payload", strings.ReplaceAll(text, "\n", " | "))

	report, ok := ParseControllerReport(text)
	if !ok {
		h.logger.Debug("dropping payload with wrong field count", "topic", topic)
		return nil
	}

	id := topicDeviceID(topic)
	equipType, equipID := equipment.DecomposeID(id)
	if equipType == "" {
		h.logger.Debug("dropping message with invalid device id", "topic", topic)
		return nil
	}

	dev, err := h.repo.Get(ctx, equipType, equipID)
	if err != nil {
		if errors.Is(err, equipment.ErrNotFound) {
			h.logger.Debug("dropping message for unknown device", "device", id)
			return nil
		}
		return err
	}

	excluded := h.exclude[id]

	// A message from a device marked FAULT means the link is back.
	if dev.State == equipment.StateFault && !excluded {
		h.notifier.Notify(alert.LTEResumed(dev.Place, dev.Type, dev.ID))
	}

	if report.Abnormal {
		return h.persistMalformed(ctx, dev, report)
	}

	classification := Classify(report, dev, h.cache.Snapshot())
	if !excluded {
		for _, msg := range classification.Alerts {
			h.notifier.Notify(msg)
		}
	}

	status := &equipment.Status{
		Type:        dev.Type,
		EquipmentID: dev.ID,
		RawData:     report.CanonicalRaw(),
		Abnormal:    false,
		AmpereRed:   report.AmpereRed,
		AmpereGreen: report.AmpereGreen,
		DutyRed:     report.DutyRed,
		DutyGreen:   report.DutyGreen,
	}

	deviceState := equipment.StateEtc
	if classification.Normal {
		status.State = equipment.StateNormal
		deviceState = equipment.StateNormal
	} else {
		status.State = equipment.StateAbnormal
	}

	if err := h.repo.CreateStatus(ctx, status); err != nil {
		return err
	}
	if err := h.repo.UpdateState(ctx, dev.Type, dev.ID, deviceState); err != nil {
		return err
	}

	h.mirror(id, dev, report)
	return nil
}

// persistMalformed records a payload whose fields did not all parse:
// state ETC on the device, an ABNORMAL tainted status row, and a
// malformed-payload notice.
func (h *ControllerHandler) persistMalformed(ctx context.Context, dev *equipment.Equipment, report *ControllerReport) error {
	h.notifier.Notify(alert.MalformedPayload(dev.Type, dev.ID))

	if err := h.repo.UpdateState(ctx, dev.Type, dev.ID, equipment.StateEtc); err != nil {
		return err
	}
	return h.repo.CreateStatus(ctx, &equipment.Status{
		Type:        dev.Type,
		EquipmentID: dev.ID,
		RawData:     report.CanonicalRaw(),
		State:       equipment.StateAbnormal,
		Abnormal:    true,
		AmpereRed:   report.AmpereRed,
		AmpereGreen: report.AmpereGreen,
		DutyRed:     report.DutyRed,
		DutyGreen:   report.DutyGreen,
	})
}

// mirror forwards the classified sample to the optional metrics sink.
func (h *ControllerHandler) mirror(id string, dev *equipment.Equipment, r *ControllerReport) {
	if h.metrics == nil {
		return
	}
	h.metrics.WriteChannelCurrent(id, string(equipment.ChannelRed),
		r.AmpereRed, perUnit(r.AmpereRed, dev.Units), r.DutyRed)
	h.metrics.WriteChannelCurrent(id, string(equipment.ChannelGreen),
		r.AmpereGreen, perUnit(r.AmpereGreen, dev.Units), r.DutyGreen)
	h.metrics.WriteTemperature(id, float64(r.Temperature))
}

// topicDeviceID extracts the canonical device id from the first topic
// segment.
func topicDeviceID(topic string) string {
	if i := strings.IndexByte(topic, '/'); i >= 0 {
		return topic[:i]
	}
	return topic
}
