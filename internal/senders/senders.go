// Package senders is the boundary to the platform push gateways. The
// bouncer core only depends on the Sender interface; real APNs/FCM
// clients plug in behind it.
package senders

import (
	"log"

	"github.com/localnerve/push-bouncer/internal/config"
	"github.com/localnerve/push-bouncer/internal/models"
)

// Sender delivers one payload to a set of same-platform devices and
// reports how many deliveries succeeded. Per-device delivery errors are
// logged by the implementation and never propagated; a rejected batch
// must not fail the whole dispatch.
type Sender interface {
	Send(identity string, devices []models.RemotePushDeviceToken, payload map[string]interface{}, options map[string]interface{}) int
}

// Platform bundles the two gateway senders.
type Platform struct {
	Android Sender
	Apple   Sender
}

// LogSender logs instead of delivering and reports every device as
// delivered. Used in development and tests, and whenever a gateway is
// not configured.
type LogSender struct {
	Gateway string
}

// Send implements Sender.
func (s *LogSender) Send(identity string, devices []models.RemotePushDeviceToken, payload map[string]interface{}, options map[string]interface{}) int {
	if len(devices) == 0 {
		return 0
	}
	log.Printf("%s: would send notification to %d device(s) for %s", s.Gateway, len(devices), identity)
	return len(devices)
}

// NewFromConfig builds the platform senders for the configured gateways.
// Unconfigured gateways fall back to log-only delivery.
func NewFromConfig(cfg *config.Config) *Platform {
	platform := &Platform{
		Android: &LogSender{Gateway: "FCM"},
		Apple:   &LogSender{Gateway: "APNs"},
	}
	if cfg.FCMEnabled {
		log.Printf("FCM_ENABLED is set but no FCM client is linked in; using log-only delivery")
	}
	if cfg.APNSEnabled {
		log.Printf("APNS_ENABLED is set but no APNs client is linked in; using log-only delivery")
	}
	return platform
}
