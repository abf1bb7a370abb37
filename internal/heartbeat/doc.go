// Package heartbeat publishes the periodic "timestamp" and "beacon"
// topics the controllers use to sync their clocks and confirm the
// supervisor is alive.
package heartbeat
