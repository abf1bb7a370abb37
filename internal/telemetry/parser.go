package telemetry

import (
	"fmt"
	"strconv"
	"strings"
)

// controllerFieldCount is the exact number of newline-separated fields in
// a controller status payload. Any other count drops the message.
const controllerFieldCount = 19

// ControllerReport is one parsed controller status payload.
//
// A field that fails to parse is substituted with its zero value and
// taints the whole report via Abnormal; the record is still persisted so
// the raw payload is never lost.
type ControllerReport struct {
	VolRed   int
	VolGreen int

	AmpereRed   float64
	AmpereGreen float64
	AmpereOff   float64

	DutyRed      int
	DutyGreen    int
	OutputStatus int
	Temperature  int
	PowerLimit   int
	Direction    int
	Operation    int
	RS485        int
	PublishCount int
	ResetCount   int

	UnitCommStatus int

	// StatusForUnit is carried as a string with interior spaces removed.
	StatusForUnit string

	ControllerVer  int
	ControllerTime int

	// Abnormal is true when any numeric field failed to parse.
	Abnormal bool
}

// ParseControllerReport parses a 19-field controller payload. The second
// return is false when the field count is wrong; such payloads are
// dropped without a record.
func ParseControllerReport(payload string) (*ControllerReport, bool) {
	fields := strings.Split(payload, "\n")
	if len(fields) != controllerFieldCount {
		return nil, false
	}

	var r ControllerReport
	r.VolRed = r.parseInt(fields[0])
	r.VolGreen = r.parseInt(fields[1])
	r.AmpereRed = r.parseFloat(fields[2])
	r.AmpereGreen = r.parseFloat(fields[3])
	r.AmpereOff = r.parseFloat(fields[4])
	r.DutyRed = r.parseInt(fields[5])
	r.DutyGreen = r.parseInt(fields[6])
	r.OutputStatus = r.parseInt(fields[7])
	r.Temperature = r.parseInt(fields[8])
	r.PowerLimit = r.parseInt(fields[9])
	r.Direction = r.parseInt(fields[10])
	r.Operation = r.parseInt(fields[11])
	r.RS485 = r.parseInt(fields[12])
	r.PublishCount = r.parseInt(fields[13])
	r.ResetCount = r.parseInt(fields[14])
	r.UnitCommStatus = r.parseInt(fields[15])
	r.StatusForUnit = strings.ReplaceAll(fields[16], " ", "")
	r.ControllerVer = r.parseInt(fields[17])
	r.ControllerTime = r.parseInt(fields[18])

	return &r, true
}

func (r *ControllerReport) parseInt(s string) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		r.Abnormal = true
		return 0
	}
	return v
}

func (r *ControllerReport) parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		r.Abnormal = true
		return 0
	}
	return v
}

// CommOK reports whether the RS485 link to the control board is healthy.
func (r *ControllerReport) CommOK() bool {
	return r.RS485 == 0 || r.RS485 == 1
}

// CanonicalRaw re-serialises the report into the stored rawData form:
// 19 newline-separated values with controller_ver and controller_time
// zero-padded to widths 2 and 8.
func (r *ControllerReport) CanonicalRaw() string {
	return fmt.Sprintf("%d\n%d\n%s\n%s\n%s\n%d\n%d\n%d\n%d\n%d\n%d\n%d\n%d\n%d\n%d\n%d\n%s\n%02d\n%08d",
		r.VolRed,
		r.VolGreen,
		formatFloat(r.AmpereRed),
		formatFloat(r.AmpereGreen),
		formatFloat(r.AmpereOff),
		r.DutyRed,
		r.DutyGreen,
		r.OutputStatus,
		r.Temperature,
		r.PowerLimit,
		r.Direction,
		r.Operation,
		r.RS485,
		r.PublishCount,
		r.ResetCount,
		r.UnitCommStatus,
		r.StatusForUnit,
		r.ControllerVer,
		r.ControllerTime,
	)
}

// formatFloat renders a current value without trailing zeros, so whole
// numbers round-trip as written by the controllers.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// SignExtend32 interprets bit 31 of a raw value as a sign bit and widens
// it to a signed 64-bit value.
func SignExtend32(raw int64) int64 {
	if raw&(1<<31) != 0 {
		return raw - (1 << 32)
	}
	return raw
}
