package services

import (
	"encoding/json"
	"strconv"
	"strings"
	"testing"
	"time"
)

// TestTruncateRemovePayload caps remove payloads at the most recent
// message ids and leaves other payloads untouched.
func TestTruncateRemovePayload(t *testing.T) {
	ids := make([]string, 500)
	for i := range ids {
		ids[i] = strconv.Itoa(i + 1)
	}
	payload := map[string]interface{}{
		"event":             "remove",
		"zulip_message_ids": strings.Join(ids, ","),
	}

	truncated := truncateRemovePayload(payload)
	kept := strings.Split(truncated["zulip_message_ids"].(string), ",")
	if len(kept) != maxMessageIDs {
		t.Fatalf("Expected %d ids, got %d", maxMessageIDs, len(kept))
	}
	if kept[0] != "301" || kept[len(kept)-1] != "500" {
		t.Errorf("Expected the newest ids to survive, got %s..%s", kept[0], kept[len(kept)-1])
	}

	message := map[string]interface{}{
		"event":             "message",
		"zulip_message_ids": "1,2,3",
	}
	if truncateRemovePayload(message)["zulip_message_ids"] != "1,2,3" {
		t.Error("Expected non-remove payloads to pass through unchanged")
	}
}

// TestTruncateRemovePayloadShortList leaves short remove payloads alone
// but still sorts them.
func TestTruncateRemovePayloadShortList(t *testing.T) {
	payload := map[string]interface{}{
		"event":             "remove",
		"zulip_message_ids": "30,10,20",
	}
	truncated := truncateRemovePayload(payload)
	if truncated["zulip_message_ids"] != "10,20,30" {
		t.Errorf("Expected sorted ids, got %v", truncated["zulip_message_ids"])
	}
}

// TestRemoteQueueLatency distinguishes integer and fractional origin
// timestamps.
func TestRemoteQueueLatency(t *testing.T) {
	now := time.Unix(1700000100, 0).UTC()

	intReq := NotifyRequest{
		GCMPayload: map[string]interface{}{"time": json.Number("1700000000")},
	}
	if got := remoteQueueLatency(intReq, now); got != "100" {
		t.Errorf("Expected whole-second latency 100, got %q", got)
	}

	floatReq := NotifyRequest{
		GCMPayload: map[string]interface{}{"time": json.Number("1700000000.500")},
	}
	if got := remoteQueueLatency(floatReq, now); got != "99.500" {
		t.Errorf("Expected fractional latency 99.500, got %q", got)
	}

	// Falls back to the APNs payload shape
	apnsReq := NotifyRequest{
		GCMPayload: map[string]interface{}{},
		APNSPayload: map[string]interface{}{
			"custom": map[string]interface{}{
				"zulip": map[string]interface{}{"time": json.Number("1700000000")},
			},
		},
	}
	if got := remoteQueueLatency(apnsReq, now); got != "100" {
		t.Errorf("Expected latency from APNs payload, got %q", got)
	}

	// No origin timestamp, no latency line
	empty := NotifyRequest{GCMPayload: map[string]interface{}{}, APNSPayload: map[string]interface{}{}}
	if got := remoteQueueLatency(empty, now); got != "" {
		t.Errorf("Expected empty latency, got %q", got)
	}
}

// TestDayBucketEnd pins the UTC day-bucket boundary behavior.
func TestDayBucketEnd(t *testing.T) {
	mid := time.Date(2026, 8, 20, 13, 45, 0, 0, time.UTC)
	if got := dayBucketEnd(mid); !got.Equal(time.Date(2026, 8, 21, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Expected next midnight, got %v", got)
	}

	exact := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	if got := dayBucketEnd(exact); !got.Equal(exact) {
		t.Errorf("Expected midnight to map to itself, got %v", got)
	}
}
