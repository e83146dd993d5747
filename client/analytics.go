package client

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
)

// maxClientBatchSize caps how many rows of one table go into a single
// submission. Larger backlogs drain over successive sync runs.
const maxClientBatchSize = 10000

// RealmCount is one realm-scoped count row as submitted to the bouncer.
type RealmCount struct {
	ID       int64   `json:"id"`
	Property string  `json:"property"`
	Realm    int64   `json:"realm"`
	EndTime  float64 `json:"end_time"`
	Subgroup *string `json:"subgroup"`
	Value    int64   `json:"value"`
}

// InstallationCount is one installation-wide count row.
type InstallationCount struct {
	ID       int64   `json:"id"`
	Property string  `json:"property"`
	EndTime  float64 `json:"end_time"`
	Subgroup *string `json:"subgroup"`
	Value    int64   `json:"value"`
}

// RealmAuditLog is one audit log row. ExtraData must be a JSON object.
type RealmAuditLog struct {
	ID         int64           `json:"id"`
	Realm      int64           `json:"realm"`
	EventTime  float64         `json:"event_time"`
	Backfilled bool            `json:"backfilled"`
	ExtraData  json.RawMessage `json:"extra_data"`
	EventType  int             `json:"event_type"`
}

// Realm is one entry of the realm directory snapshot.
type Realm struct {
	ID              int64   `json:"id"`
	UUID            string  `json:"uuid"`
	UUIDOwnerSecret string  `json:"uuid_owner_secret"`
	Host            string  `json:"host"`
	URL             string  `json:"url"`
	Deactivated     bool    `json:"deactivated"`
	DateCreated     float64 `json:"date_created"`
}

// AnalyticsSource supplies the rows to sync. Implementations query the
// server's local analytics tables for rows newer than the given id.
type AnalyticsSource interface {
	RealmCountsSince(ctx context.Context, lastID int64, limit int) ([]RealmCount, error)
	InstallationCountsSince(ctx context.Context, lastID int64, limit int) ([]InstallationCount, error)
	RealmAuditLogsSince(ctx context.Context, lastID int64, limit int) ([]RealmAuditLog, error)
	Realms(ctx context.Context) ([]Realm, error)
	ServerVersion() string
}

// SendAnalytics runs one sync pass: ask the bouncer what it already
// has, then submit everything newer. Transient bouncer unavailability
// is logged and swallowed so the periodic job just tries again next
// run; anything else propagates.
func (c *Client) SendAnalytics(ctx context.Context, source AnalyticsSource) error {
	status, err := c.Send(ctx, http.MethodGet, "server/analytics/status", nil)
	if err != nil {
		var transient *TransientError
		if errors.As(err, &transient) {
			log.Printf("Push bouncer unavailable, skipping analytics sync: %v", transient)
			return nil
		}
		return err
	}

	realmCounts, err := source.RealmCountsSince(ctx, statusID(status, "last_realm_count_id"), maxClientBatchSize)
	if err != nil {
		return err
	}
	installationCounts, err := source.InstallationCountsSince(ctx, statusID(status, "last_installation_count_id"), maxClientBatchSize)
	if err != nil {
		return err
	}
	auditLogs, err := source.RealmAuditLogsSince(ctx, statusID(status, "last_realmauditlog_id"), maxClientBatchSize)
	if err != nil {
		return err
	}

	if len(realmCounts) == 0 && len(installationCounts) == 0 && len(auditLogs) == 0 {
		return nil
	}

	realms, err := source.Realms(ctx)
	if err != nil {
		return err
	}

	body, err := analyticsBody(realmCounts, installationCounts, auditLogs, realms, source.ServerVersion())
	if err != nil {
		return err
	}

	if _, err := c.Send(ctx, http.MethodPost, "server/analytics", body); err != nil {
		var transient *TransientError
		var apiErr *APIError
		switch {
		case errors.As(err, &transient):
			log.Printf("Push bouncer unavailable, analytics submission postponed: %v", transient)
			return nil
		case errors.As(err, &apiErr):
			// Includes DATA_OUT_OF_ORDER. The next run re-reads the
			// bouncer's status and resumes from its cursor.
			log.Printf("Push bouncer rejected analytics submission: %v", apiErr)
			return nil
		default:
			return err
		}
	}

	log.Printf("Reported %d records to the push bouncer",
		len(realmCounts)+len(installationCounts)+len(auditLogs))
	return nil
}

// SendRealmsOnly submits the realm directory without any analytics
// rows, used right after realm creation or deactivation so the bouncer
// learns about the change before the next scheduled sync. Errors
// propagate; the caller decides whether the operation can proceed.
func (c *Client) SendRealmsOnly(ctx context.Context, source AnalyticsSource) error {
	realms, err := source.Realms(ctx)
	if err != nil {
		return err
	}

	body, err := analyticsBody(nil, nil, nil, realms, source.ServerVersion())
	if err != nil {
		return err
	}
	_, err = c.Send(ctx, http.MethodPost, "server/analytics", body)
	return err
}

// analyticsBody builds the submission payload. Tables travel as
// JSON-encoded strings inside the body, the shape the bouncer has
// always accepted.
func analyticsBody(realmCounts []RealmCount, installationCounts []InstallationCount, auditLogs []RealmAuditLog, realms []Realm, version string) (map[string]interface{}, error) {
	if realmCounts == nil {
		realmCounts = []RealmCount{}
	}
	if installationCounts == nil {
		installationCounts = []InstallationCount{}
	}

	body := make(map[string]interface{}, 5)
	for key, value := range map[string]interface{}{
		"realm_counts":        realmCounts,
		"installation_counts": installationCounts,
		"realms":              realms,
	} {
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		body[key] = string(encoded)
	}
	if auditLogs != nil {
		encoded, err := json.Marshal(auditLogs)
		if err != nil {
			return nil, err
		}
		body["realmauditlog_rows"] = string(encoded)
	}
	body["version"] = version
	return body, nil
}

// statusID extracts one cursor value from the status response. JSON
// numbers decode as float64.
func statusID(status map[string]interface{}, key string) int64 {
	if value, ok := status[key].(float64); ok {
		return int64(value)
	}
	return 0
}
