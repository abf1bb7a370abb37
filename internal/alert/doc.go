// Package alert formats operator messages and broadcasts them over SMS.
// Delivery runs on a bounded queue with a small worker pool and a dedupe
// window, so alerting can never back-pressure the telemetry pipeline.
package alert
