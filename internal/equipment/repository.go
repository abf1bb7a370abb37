package equipment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Repository defines persistence operations for equipment and its
// telemetry. The interface exists so the pipeline, monitor and refresher
// can be tested against fakes without a MariaDB instance.
type Repository interface {
	// ListActive retrieves all active equipment joined with its location,
	// ordered by id.
	ListActive(ctx context.Context) ([]Equipment, error)

	// Get retrieves one active equipment row by (type, id).
	// Returns ErrNotFound if the device does not exist or is inactive.
	Get(ctx context.Context, equipType string, id int) (*Equipment, error)

	// UpdateState sets the device_state of a device.
	UpdateState(ctx context.Context, equipType string, id int, state State) error

	// CreateStatus appends one controller telemetry record.
	CreateStatus(ctx context.Context, status *Status) error

	// LatestStatus retrieves the newest status record for a device by
	// receive_date descending. Returns ErrNoStatus when the device has no
	// history.
	LatestStatus(ctx context.Context, equipType string, id int) (*Status, error)

	// AmpereHistory retrieves (ampere, duty) pairs for one channel from
	// non-abnormal history with non-zero current, newest first.
	AmpereHistory(ctx context.Context, equipType string, id int, channel Channel) ([]AmpereSample, error)

	// CreateDisplayInfo appends one display-device dataset record.
	CreateDisplayInfo(ctx context.Context, info *DisplayDeviceInfo) error
}

// Repository errors.
var (
	// ErrNotFound is returned when a device does not exist or is inactive.
	ErrNotFound = errors.New("equipment: not found")

	// ErrNoStatus is returned when a device has no status history.
	ErrNoStatus = errors.New("equipment: no status records")
)

// queryTimeout bounds individual repository statements.
const queryTimeout = 10 * time.Second

// MySQLRepository implements Repository against the external MariaDB
// schema (Equipment, EquipmentLocation, EquipmentStatus,
// DisplayDeviceInfo).
type MySQLRepository struct {
	db *sql.DB
}

// NewMySQLRepository creates a MariaDB-backed repository.
// The db parameter should be an open connection pool.
func NewMySQLRepository(db *sql.DB) *MySQLRepository {
	return &MySQLRepository{db: db}
}

// ListActive retrieves all active equipment joined with its location.
func (r *MySQLRepository) ListActive(ctx context.Context) ([]Equipment, error) {
	query := `
		SELECT e.id, e.equipment_type, e.device_state, e.` + "`interval`" + `, e.units, l.name
		FROM Equipment e
		INNER JOIN EquipmentLocation l ON e.location_id = l.id
		WHERE e.is_active = TRUE
		ORDER BY e.id ASC`

	qctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(qctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing equipment: %w", err)
	}
	defer rows.Close()

	var out []Equipment
	for rows.Next() {
		var e Equipment
		var state string
		if err := rows.Scan(&e.ID, &e.Type, &state, &e.Interval, &e.Units, &e.Place); err != nil {
			return nil, fmt.Errorf("scanning equipment: %w", err)
		}
		e.State = State(state)
		e.Active = true
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating equipment: %w", err)
	}
	return out, nil
}

// Get retrieves one active equipment row by (type, id).
func (r *MySQLRepository) Get(ctx context.Context, equipType string, id int) (*Equipment, error) {
	query := `
		SELECT e.id, e.equipment_type, e.device_state, e.` + "`interval`" + `, e.units, l.name
		FROM Equipment e
		INNER JOIN EquipmentLocation l ON e.location_id = l.id
		WHERE e.id = ? AND e.equipment_type = ? AND e.is_active = TRUE`

	qctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var e Equipment
	var state string
	err := r.db.QueryRowContext(qctx, query, id, equipType).
		Scan(&e.ID, &e.Type, &state, &e.Interval, &e.Units, &e.Place)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying equipment %s-%d: %w", equipType, id, err)
	}
	e.State = State(state)
	e.Active = true
	return &e, nil
}

// UpdateState sets the device_state of a device.
func (r *MySQLRepository) UpdateState(ctx context.Context, equipType string, id int, state State) error {
	query := `UPDATE Equipment SET device_state = ? WHERE id = ? AND equipment_type = ?`

	qctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if _, err := r.db.ExecContext(qctx, query, string(state), id, equipType); err != nil {
		return fmt.Errorf("updating state of %s-%d: %w", equipType, id, err)
	}
	return nil
}

// CreateStatus appends one controller telemetry record.
//
// Alongside rawData the classification inputs are persisted as columns so
// that baseline extraction reads columns for new rows and only falls back
// to substring-indexing for legacy ones.
func (r *MySQLRepository) CreateStatus(ctx context.Context, status *Status) error {
	query := `
		INSERT INTO EquipmentStatus
			(equipment_type, equipment_id, rawData, state, abnormal, receive_date,
			 ampere_red, ampere_green, duty_red, duty_green)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	receiveDate := status.ReceiveDate
	if receiveDate.IsZero() {
		receiveDate = time.Now().In(KST)
	}

	qctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.db.ExecContext(qctx, query,
		status.Type,
		status.EquipmentID,
		status.RawData,
		string(status.State),
		status.Abnormal,
		receiveDate,
		status.AmpereRed,
		status.AmpereGreen,
		status.DutyRed,
		status.DutyGreen,
	)
	if err != nil {
		return fmt.Errorf("inserting status for %s-%d: %w", status.Type, status.EquipmentID, err)
	}
	return nil
}

// LatestStatus retrieves the newest status record for a device.
func (r *MySQLRepository) LatestStatus(ctx context.Context, equipType string, id int) (*Status, error) {
	query := `
		SELECT id, equipment_type, equipment_id, rawData, state, abnormal, receive_date
		FROM EquipmentStatus
		WHERE equipment_type = ? AND equipment_id = ?
		ORDER BY receive_date DESC, id DESC
		LIMIT 1`

	qctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var s Status
	var state string
	err := r.db.QueryRowContext(qctx, query, equipType, id).
		Scan(&s.ID, &s.Type, &s.EquipmentID, &s.RawData, &state, &s.Abnormal, &s.ReceiveDate)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoStatus
		}
		return nil, fmt.Errorf("querying latest status of %s-%d: %w", equipType, id, err)
	}
	s.State = State(state)
	return &s, nil
}

// ampereLine and dutyLine give the 1-based newline index of a channel's
// current and duty fields inside rawData, for the legacy substring
// fallback.
func ampereLine(channel Channel) int {
	if channel == ChannelRed {
		return 3
	}
	return 4
}

func dutyLine(channel Channel) int {
	if channel == ChannelRed {
		return 6
	}
	return 7
}

// AmpereHistory retrieves (ampere, duty) pairs for one channel.
//
// New rows are read from the columnar fields; legacy rows fall back to
// substring-indexing rawData at the channel's line positions.
func (r *MySQLRepository) AmpereHistory(ctx context.Context, equipType string, id int, channel Channel) ([]AmpereSample, error) {
	ampCol, dutyCol := "ampere_red", "duty_red"
	if channel == ChannelGreen {
		ampCol, dutyCol = "ampere_green", "duty_green"
	}

	query := fmt.Sprintf(`
		SELECT
			COALESCE(%[1]s, SUBSTRING_INDEX(SUBSTRING_INDEX(rawData, '\n', %[3]d), '\n', -1)) AS amp,
			COALESCE(%[2]s, SUBSTRING_INDEX(SUBSTRING_INDEX(rawData, '\n', %[4]d), '\n', -1)) AS duty
		FROM EquipmentStatus
		WHERE equipment_type = ? AND equipment_id = ?
			AND abnormal = FALSE
			AND COALESCE(%[1]s, SUBSTRING_INDEX(SUBSTRING_INDEX(rawData, '\n', %[3]d), '\n', -1)) != '0'
		ORDER BY id DESC`,
		ampCol, dutyCol, ampereLine(channel), dutyLine(channel))

	qctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(qctx, query, equipType, id)
	if err != nil {
		return nil, fmt.Errorf("querying ampere history of %s-%d: %w", equipType, id, err)
	}
	defer rows.Close()

	var out []AmpereSample
	for rows.Next() {
		var amp, duty string
		if err := rows.Scan(&amp, &duty); err != nil {
			return nil, fmt.Errorf("scanning ampere history: %w", err)
		}
		sample, ok := parseAmpereSample(amp, duty)
		if !ok {
			continue
		}
		out = append(out, sample)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating ampere history: %w", err)
	}
	return out, nil
}

// CreateDisplayInfo appends one display-device dataset record.
func (r *MySQLRepository) CreateDisplayInfo(ctx context.Context, info *DisplayDeviceInfo) error {
	query := `
		INSERT INTO DisplayDeviceInfo
			(id, equipment_type, equipment_id,
			 voltage_red, voltage_green, current_red, current_green,
			 off_current_red, off_current_green, temperature)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	qctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.db.ExecContext(qctx, query,
		info.DatasetIndex,
		info.Type,
		info.EquipmentID,
		info.VoltageRed,
		info.VoltageGreen,
		info.CurrentRed,
		info.CurrentGreen,
		info.OffCurrentRed,
		info.OffCurrentGreen,
		info.Temperature,
	)
	if err != nil {
		return fmt.Errorf("inserting display info for %s-%d: %w", info.Type, info.EquipmentID, err)
	}
	return nil
}
