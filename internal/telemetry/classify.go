package telemetry

import (
	"strconv"

	"github.com/dolphin-iot/dolphin-core/internal/alert"
	"github.com/dolphin-iot/dolphin-core/internal/baseline"
	"github.com/dolphin-iot/dolphin-core/internal/equipment"
)

// Tolerance returns the relative envelope width for a duty rate. Lower
// duty cycles draw noisier current, so the envelope widens as duty drops.
func Tolerance(duty int) float64 {
	switch {
	case duty == 100:
		return 0.20
	case duty > 50:
		return 0.30
	case duty > 10:
		return 0.40
	default:
		return 0.50
	}
}

// Classification is the outcome of checking one non-malformed report
// against the device's baselines.
type Classification struct {
	// Normal is true when every metric check passed. It maps to status
	// state NORMAL / device state NORMAL; false maps to ABNORMAL / ETC.
	Normal bool

	// Alerts are the operator messages this report produced, in channel
	// order. Exclusion-list suppression happens at the handler.
	Alerts []string
}

// Classify runs the metric checks for one report.
//
// The initial check catches current/duty disagreement: a driven channel
// with no current, or current on an idle channel, is never normal. The
// envelope check only runs when the device has baselines for both
// channels; per-unit current must fall inside
// [b·(1−t), b·(1+t)] for the baseline b at the report's duty rate. An
// out-of-envelope or zero current raises a channel alert; an unhealthy
// RS485 link replaces that channel's alert with a comm-error message.
func Classify(r *ControllerReport, dev *equipment.Equipment, snap *baseline.Snapshot) Classification {
	var c Classification

	redPerUnit := perUnit(r.AmpereRed, dev.Units)
	greenPerUnit := perUnit(r.AmpereGreen, dev.Units)

	c.Normal = !(redPerUnit == 0 && r.DutyRed > 0) && !(greenPerUnit == 0 && r.DutyGreen > 0) &&
		!(redPerUnit > 0 && r.DutyRed == 0) && !(greenPerUnit > 0 && r.DutyGreen == 0)

	id := dev.CanonicalID()
	checks := []struct {
		channel equipment.Channel
		perUnit float64
		ampere  float64
		duty    int
	}{
		{equipment.ChannelRed, redPerUnit, r.AmpereRed, r.DutyRed},
		{equipment.ChannelGreen, greenPerUnit, r.AmpereGreen, r.DutyGreen},
	}

	if !snap.HasBaselines(id) {
		// No complete baseline picture yet; the initial check stands
		// alone.
		return c
	}

	for _, check := range checks {
		// An unseen duty rate yields a zero baseline and a degenerate
		// [0, 0] envelope, so any current at that duty reads abnormal.
		b, _ := snap.Lookup(id, check.channel, strconv.Itoa(check.duty))

		if !r.CommOK() {
			c.Alerts = append(c.Alerts, alert.RS485Error(dev.Place, dev.Type, dev.ID))
			continue
		}

		// The zero test is on the raw measurement: a device with no
		// recorded unit count has perUnit 0 regardless of what it draws.
		t := Tolerance(check.duty)
		lower := b - b*t
		upper := b + b*t
		if check.ampere == 0 || check.perUnit < lower || check.perUnit > upper {
			c.Normal = false
			c.Alerts = append(c.Alerts,
				alert.AbnormalCurrent(dev.Place, dev.Type, dev.ID, check.channel, check.ampere))
		}
	}

	return c
}

// perUnit normalises a current by the lamp-unit count; devices with no
// recorded units yield 0.
func perUnit(ampere float64, units int) float64 {
	if units <= 0 {
		return 0
	}
	return ampere / float64(units)
}
