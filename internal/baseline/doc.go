// Package baseline maintains the per-device current baselines used to
// classify controller telemetry. A periodic refresher averages historic
// (current, duty) pairs per LED channel, normalises them per lamp unit,
// and publishes the result as an immutable snapshot that handlers read
// lock-free.
package baseline
