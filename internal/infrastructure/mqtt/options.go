package mqtt

import (
	"fmt"
	"math/rand/v2"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/dolphin-iot/dolphin-core/internal/infrastructure/config"
)

// Connection constants.
const (
	// defaultConnectTimeout is the maximum time to wait for initial connection.
	defaultConnectTimeout = 10 * time.Second

	// defaultPublishTimeout is the maximum time to wait for publish acknowledgment.
	defaultPublishTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on disconnect.
	defaultDisconnectQuiesce = 1000 // milliseconds

	// defaultKeepAlive is the keepalive interval for the connection.
	defaultKeepAlive = 60 * time.Second

	// defaultReconnectDelay is the backoff between connect attempts when
	// the configuration does not specify one.
	defaultReconnectDelay = 10 * time.Second

	// maxQoS is the maximum QoS level supported.
	maxQoS = 2
)

// Topic names published by Dolphin.
const (
	// TopicTimestamp carries the wall-clock heartbeat (KST, MMDDHHMM).
	TopicTimestamp = "timestamp"

	// TopicBeacon carries the liveness ping.
	TopicBeacon = "beacon"
)

// Subscription patterns consumed by Dolphin. The first topic segment is
// the canonical device id (e.g. AGL12).
const (
	// PatternControllerStatus matches controller telemetry.
	PatternControllerStatus = "+/status/controller"

	// PatternDisplayDeviceStatus matches display-device telemetry.
	PatternDisplayDeviceStatus = "+/status/dispDevice"
)

// NewClientID generates a fresh client identifier of the form
// "dolphin-{hex(random u64)}". A random id per process avoids broker-side
// session collisions across restarts.
func NewClientID() string {
	return fmt.Sprintf("dolphin-%x", rand.Uint64())
}

// buildClientOptions creates paho MQTT options from Dolphin config.
//
// This configures:
//   - Broker URL (mqtt://{MQTT_HOST})
//   - Randomised client ID
//   - Authentication credentials (if provided)
//   - Auto-reconnect with a fixed retry delay
//   - Clean session mode
func buildClientOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	opts.AddBroker(fmt.Sprintf("mqtt://%s", cfg.Host))
	opts.SetClientID(NewClientID())

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	// Clean session - no persistent broker-side queue; in-flight messages
	// during a disconnect are lost by design.
	opts.SetCleanSession(true)

	retryDelay := defaultReconnectDelay
	if cfg.ReconnectDelay > 0 {
		retryDelay = time.Duration(cfg.ReconnectDelay) * time.Second
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(retryDelay)
	opts.SetMaxReconnectInterval(retryDelay)

	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetKeepAlive(defaultKeepAlive)

	return opts
}
