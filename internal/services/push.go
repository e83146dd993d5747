package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/localnerve/push-bouncer/internal/models"
	"github.com/localnerve/push-bouncer/internal/senders"
	"github.com/localnerve/push-bouncer/internal/types"
	"gorm.io/gorm"
)

// maxMessageIDs caps the id list of a "remove" payload, due to platform
// maximum message sizes.
const maxMessageIDs = 200

// NotifyRequest is one push-notification forwarding request.
type NotifyRequest struct {
	Identity    UserPushIdentity
	RealmUUID   *string
	GCMPayload  map[string]interface{}
	APNSPayload map[string]interface{}
	GCMOptions  map[string]interface{}
}

// NotifyResult reports the device counts per platform for observability.
// Per-device delivery errors never surface here; the senders log them.
type NotifyResult struct {
	TotalAndroidDevices int `json:"total_android_devices"`
	TotalAppleDevices   int `json:"total_apple_devices"`
}

// NotifyPush resolves the target devices, heals legacy duplicate
// registrations, truncates oversized remove payloads and fans the
// notification out to the platform senders, accounting received and
// forwarded counts around the delivery attempt.
func NotifyPush(db *gorm.DB, platform *senders.Platform, server *models.RemoteServer, req NotifyRequest) (NotifyResult, error) {
	var result NotifyResult

	var remoteRealm *models.RemoteRealm
	if req.RealmUUID != nil {
		var realm models.RemoteRealm
		err := db.Where("server_id = ? AND uuid = ?", server.ID, *req.RealmUUID).First(&realm).Error
		switch {
		case err == nil:
			remoteRealm = &realm
		case errors.Is(err, gorm.ErrRecordNotFound):
			// No mirror yet for this realm; e.g. the server has not
			// submitted analytics since the realm's creation.
		default:
			return result, err
		}
	}

	androidDevices, err := LookupPushDevices(db, server, models.PushKindGCM, req.Identity)
	if err != nil {
		return result, err
	}
	appleDevices, err := LookupPushDevices(db, server, models.PushKindAPNS, req.Identity)
	if err != nil {
		return result, err
	}

	if req.Identity.UserID != nil && req.Identity.UserUUID != nil {
		if len(androidDevices) > 0 {
			androidDevices, err = DeleteDuplicateRegistrations(db, androidDevices, server.ID, *req.Identity.UserID, *req.Identity.UserUUID)
			if err != nil {
				return result, err
			}
		}
		if len(appleDevices) > 0 {
			appleDevices, err = DeleteDuplicateRegistrations(db, appleDevices, server.ID, *req.Identity.UserID, *req.Identity.UserUUID)
			if err != nil {
				return result, err
			}
		}
	}

	now := time.Now().UTC()
	if latency := remoteQueueLatency(req, now); latency != "" {
		log.Printf("Remote queuing latency for %s:%s is %s seconds", server.UUID, req.Identity, latency)
	}

	totalDevices := int64(len(androidDevices) + len(appleDevices))
	log.Printf("Sending mobile push notifications for remote user %s:%s: %d via FCM devices, %d via APNs devices",
		server.UUID, req.Identity, len(androidDevices), len(appleDevices))

	if err := IncrementInstallationStat(db, server, StatMobilePushesReceived, now, totalDevices); err != nil {
		return result, err
	}
	if remoteRealm != nil {
		if err := IncrementRealmStat(db, remoteRealm, StatMobilePushesReceived, now, totalDevices); err != nil {
			return result, err
		}
	}

	gcmPayload := truncateRemovePayload(req.GCMPayload)
	androidDelivered := platform.Android.Send(req.Identity.String(), androidDevices, gcmPayload, req.GCMOptions)

	apnsPayload := req.APNSPayload
	if custom, ok := apnsPayload["custom"].(map[string]interface{}); ok {
		if zulip, ok := custom["zulip"].(map[string]interface{}); ok {
			custom["zulip"] = truncateRemovePayload(zulip)
		}
	}
	appleDelivered := platform.Apple.Send(req.Identity.String(), appleDevices, apnsPayload, nil)

	forwarded := int64(androidDelivered + appleDelivered)
	if err := IncrementInstallationStat(db, server, StatMobilePushesForwarded, now, forwarded); err != nil {
		return result, err
	}
	if remoteRealm != nil {
		if err := IncrementRealmStat(db, remoteRealm, StatMobilePushesForwarded, now, forwarded); err != nil {
			return result, err
		}
	}

	result.TotalAndroidDevices = len(androidDevices)
	result.TotalAppleDevices = len(appleDevices)
	return result, nil
}

// SendTestNotification delivers a bouncer-composed test notification to
// one specific device, or reports the token as unknown so the error can
// be shown on the originating device.
func SendTestNotification(db *gorm.DB, platform *senders.Platform, server *models.RemoteServer, token string, kind int, identity UserPushIdentity, basePayload map[string]interface{}) error {
	var device models.RemotePushDeviceToken
	err := identity.Filter(
		db.Where("server_id = ? AND token = ? AND kind = ?", server.ID, token, kind),
	).First(&device).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return types.ErrInvalidPushDeviceToken
	}
	if err != nil {
		return err
	}

	// The remote server only sends basic user and server info; the test
	// notification's actual shape is composed here so it can evolve
	// without waiting for servers to upgrade.
	payload := make(map[string]interface{}, len(basePayload)+2)
	for k, v := range basePayload {
		payload[k] = v
	}
	payload["event"] = "test"
	payload["time"] = time.Now().UTC().Unix()

	devices := []models.RemotePushDeviceToken{device}
	if kind == models.PushKindAPNS {
		platform.Apple.Send(identity.String(), devices, payload, nil)
	} else {
		platform.Android.Send(identity.String(), devices, payload, nil)
	}
	return nil
}

// remoteQueueLatency computes how long the notification sat on the
// remote server before reaching the bouncer, when the payload carries an
// origin timestamp. An integer origin value keeps whole-second
// granularity; fractional values report with millisecond precision.
// Observability only, never blocking.
func remoteQueueLatency(req NotifyRequest, now time.Time) string {
	sentTime := req.GCMPayload["time"]
	if sentTime == nil {
		if custom, ok := req.APNSPayload["custom"].(map[string]interface{}); ok {
			if zulip, ok := custom["zulip"].(map[string]interface{}); ok {
				sentTime = zulip["time"]
			}
		}
	}

	switch v := sentTime.(type) {
	case json.Number:
		if !strings.Contains(v.String(), ".") {
			if sent, err := v.Int64(); err == nil {
				return strconv.FormatInt(now.Unix()-sent, 10)
			}
		}
		if sent, err := v.Float64(); err == nil {
			return fmt.Sprintf("%.3f", float64(now.UnixNano())/1e9-sent)
		}
	case int64:
		return strconv.FormatInt(now.Unix()-v, 10)
	case float64:
		return fmt.Sprintf("%.3f", float64(now.UnixNano())/1e9-v)
	}
	return ""
}

// truncateRemovePayload caps a "remove" payload's message id list to the
// most recent maxMessageIDs entries, sorted ascending. Applied uniformly
// to both platforms' payload shapes.
func truncateRemovePayload(payload map[string]interface{}) map[string]interface{} {
	if payload == nil {
		return nil
	}
	if payload["event"] != "remove" {
		return payload
	}
	rawIDs, ok := payload["zulip_message_ids"].(string)
	if !ok || rawIDs == "" {
		return payload
	}

	parts := strings.Split(rawIDs, ",")
	ids := make([]int64, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if len(ids) > maxMessageIDs {
		ids = ids[len(ids)-maxMessageIDs:]
	}

	truncated := make([]string, len(ids))
	for i, id := range ids {
		truncated[i] = strconv.FormatInt(id, 10)
	}
	payload["zulip_message_ids"] = strings.Join(truncated, ",")
	return payload
}
