package equipment

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// KST is the zone telemetry timestamps are stored in. receive_date is a
// naive DATETIME that every consumer of the schema reads as Korea Standard
// Time.
var KST = time.FixedZone("KST", 9*60*60)

// State is the health state of a device.
type State string

// Device states.
const (
	StateNormal   State = "NORMAL"
	StateAbnormal State = "ABNORMAL"
	StateFault    State = "FAULT"
	StateEtc      State = "ETC"
)

// Channel identifies an LED channel on a signal head.
type Channel string

// LED channels.
const (
	ChannelRed   Channel = "red"
	ChannelGreen Channel = "green"
)

// equipmentTypes is the set of valid three-letter equipment type codes.
var equipmentTypes = map[string]bool{
	"AGL": true,
	"DGL": true,
	"VGL": true,
	"BGL": true,
	"LGL": true,
}

// Equipment is one identified traffic-signal device. The pair
// (Type, ID) is the external identity; CanonicalID renders it as the
// topic-level device id.
type Equipment struct {
	ID    int
	Type  string
	State State

	// Interval is the expected telemetry period in seconds.
	Interval int

	// Units is the lamp-unit count used to normalise current. May be
	// zero; divisions must guard against it.
	Units int

	// Place is the installation location name, joined from
	// EquipmentLocation.
	Place string

	Active bool
}

// CanonicalID returns the canonical device id, e.g. "AGL12".
func (e Equipment) CanonicalID() string {
	return FormatID(e.Type, e.ID)
}

// FormatID renders the canonical device id for a type and numeric id.
func FormatID(equipType string, id int) string {
	return fmt.Sprintf("%s%d", equipType, id)
}

// DecomposeID splits a canonical device id into its three-letter type and
// numeric id.
//
// The decomposition is valid iff the leading ASCII-letter prefix is
// exactly three characters and a known equipment type, and the remainder
// parses as a positive decimal integer. Invalid input yields ("", 0);
// callers treat that as "ignore this message".
func DecomposeID(id string) (string, int) {
	i := 0
	for i < len(id) && unicode.IsLetter(rune(id[i])) && id[i] < unicode.MaxASCII {
		i++
	}
	prefix := id[:i]
	if len(prefix) != 3 || !equipmentTypes[prefix] {
		return "", 0
	}
	num, err := strconv.Atoi(id[i:])
	if err != nil || num <= 0 {
		return "", 0
	}
	return prefix, num
}

// Status is one persisted controller telemetry record. Append-only;
// "latest" is resolved by id descending because receive_date is only
// non-decreasing in practice.
type Status struct {
	ID          int
	Type        string
	EquipmentID int

	// RawData is the canonical 19-line payload (fields 17 and 18
	// zero-padded to widths 2 and 8).
	RawData string

	State    State
	Abnormal bool

	// ReceiveDate is naive KST (see KST).
	ReceiveDate time.Time

	// Columnar copies of the classification inputs, written alongside
	// RawData so baseline extraction does not have to substring-index
	// historic payloads. Legacy rows carry NULLs here.
	AmpereRed   float64
	AmpereGreen float64
	DutyRed     int
	DutyGreen   int
}

// DisplayDeviceInfo is one dataset extracted from a display-device
// payload. Append-only.
type DisplayDeviceInfo struct {
	// DatasetIndex is 4*(index_no-1)+i for the i-th dataset of a chunk.
	DatasetIndex int

	Type        string
	EquipmentID int

	VoltageRed      int
	VoltageGreen    int
	CurrentRed      int
	CurrentGreen    int
	OffCurrentRed   int
	OffCurrentGreen int

	// Temperature is the post-adjustment value in °C.
	Temperature int
}

// AmpereSample is one (current, duty) observation from status history,
// used to build per-duty baselines.
type AmpereSample struct {
	Ampere float64

	// Duty is the duty-rate as stored (string keyed; baselines group on
	// the normalised string form).
	Duty string
}

// parseAmpereSample normalises one raw history row. Rows with zero or
// unparseable current or duty never contribute to a baseline.
func parseAmpereSample(amp, duty string) (AmpereSample, bool) {
	a, err := strconv.ParseFloat(strings.TrimSpace(amp), 64)
	if err != nil || a == 0 {
		return AmpereSample{}, false
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(duty), 64)
	if err != nil || d == 0 {
		return AmpereSample{}, false
	}
	return AmpereSample{
		Ampere: a,
		Duty:   strconv.FormatFloat(d, 'f', -1, 64),
	}, true
}
