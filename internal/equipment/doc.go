// Package equipment holds the device domain model and its MariaDB
// repository: Equipment rows joined with their location, append-only
// EquipmentStatus telemetry, DisplayDeviceInfo datasets, and the
// canonical-id helpers shared by every MQTT handler.
package equipment
