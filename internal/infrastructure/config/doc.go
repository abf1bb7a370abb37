// Package config loads Dolphin configuration.
//
// Secrets and connection endpoints come from environment variables
// (MQTT_HOST, MARIADB_*, NCP_*, BIZ_SMS_*, ALERT_NUMBERS, EXCLUDE_DEVICES).
// Non-secret tunables may be supplied via an optional YAML file whose path
// is given in DOLPHIN_CONFIG. Environment variables always override file
// values, which override hardcoded defaults.
//
// Missing required environment variables are reported by MissingRequired so
// that main can print a USAGE line and exit with code 1.
package config
