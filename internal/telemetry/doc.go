// Package telemetry implements the ingest pipeline for controller and
// display-device status messages: payload parsing, baseline
// classification, persistence into the relational store and the document
// mirror, and alert emission. Handlers run on a bounded worker pool so a
// burst of messages cannot exhaust the process.
package telemetry
