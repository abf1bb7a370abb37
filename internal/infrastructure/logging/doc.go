// Package logging provides structured logging for Dolphin built on
// log/slog.
//
// All components share one Logger, scoped per component via With:
//
//	log := logging.New(cfg.Logging, version)
//	mqttLog := log.With("component", "mqtt")
package logging
