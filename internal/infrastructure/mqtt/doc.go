// Package mqtt provides MQTT client connectivity for Dolphin.
//
// This package manages:
//   - Connection to the broker (mqtt://{MQTT_HOST}) with auto-reconnect
//   - Topic subscriptions with wildcard support, restored on reconnect
//   - A topic Router matching +/# subscription patterns to handlers
//   - Heartbeat/timestamp publishing helpers
//
// # Architecture
//
// Dolphin subscribes to per-device status topics where the first topic
// segment is the canonical device id:
//
//	AGL12/status/controller   → controller telemetry (19-line payload)
//	AGL12/status/dispDevice   → display-device telemetry (chunked datasets)
//
// and publishes two heartbeat topics, "timestamp" (KST MMDDHHMM) and
// "beacon" ("ping").
//
// Message dispatch runs on the broker's I/O goroutine; handlers offload
// database, HTTP and document-store work to the telemetry worker pool.
package mqtt
