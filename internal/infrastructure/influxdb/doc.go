// Package influxdb provides the optional time-series mirror of classified
// telemetry.
//
// It wraps the official influxdb-client-go v2 library. Writes are
// non-blocking and batched; async write errors surface through a callback
// so the pipeline never stalls on the mirror. The mirror is disabled by
// default and never affects ingest when it fails.
//
// All methods are safe for concurrent use from multiple goroutines.
package influxdb
