package services

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/localnerve/push-bouncer/internal/models"
	"github.com/localnerve/push-bouncer/internal/types"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Wire shapes of the analytics rows a remote server submits. The id
// field is the row's id on the origin server and becomes remote_id here.

// RealmCountRow is one submitted realm-scoped count row.
type RealmCountRow struct {
	Property string   `json:"property"`
	Realm    int64    `json:"realm"`
	ID       *int64   `json:"id"`
	EndTime  float64  `json:"end_time"`
	Subgroup *string  `json:"subgroup"`
	Value    int64    `json:"value"`
}

// InstallationCountRow is one submitted installation-wide count row.
type InstallationCountRow struct {
	Property string   `json:"property"`
	ID       *int64   `json:"id"`
	EndTime  float64  `json:"end_time"`
	Subgroup *string  `json:"subgroup"`
	Value    int64    `json:"value"`
}

// RealmAuditLogRow is one submitted audit log row. ExtraData may be a
// JSON object or a JSON-encoded string containing one.
type RealmAuditLogRow struct {
	ID         *int64          `json:"id"`
	Realm      int64           `json:"realm"`
	EventTime  float64         `json:"event_time"`
	Backfilled bool            `json:"backfilled"`
	ExtraData  json.RawMessage `json:"extra_data"`
	EventType  int             `json:"event_type"`
}

// AnalyticsBatch is one full analytics submission.
type AnalyticsBatch struct {
	RealmCounts        []RealmCountRow
	InstallationCounts []InstallationCountRow
	RealmAuditLogRows  []RealmAuditLogRow
	HasAuditLogRows    bool
	Realms             []RealmInfo
	HasRealms          bool
	Version            *string
}

// incomingRow is the table-independent view validateIncomingTableData
// works on.
type incomingRow struct {
	id       *int64
	property string
}

// validateIncomingTableData enforces the ingestion ordering contract:
// every row must carry an id strictly greater than the running cursor,
// in submission order. Count-stat tables additionally require a
// whitelisted, non-reserved property name. An out-of-order id is a hard
// failure; silently skipping would desynchronize the submitting
// server's resumption point.
func validateIncomingTableData(tx *gorm.DB, server *models.RemoteServer, table analyticsTable, rows []incomingRow) error {
	lastID, err := GetLastRemoteID(tx, server, table.name)
	if err != nil {
		return err
	}
	for _, row := range rows {
		if table.isCountStat {
			_, known := CountStats[row.property]
			_, reserved := BouncerOnlyStatProperties[row.property]
			if !known || reserved {
				return types.BadRequest("Invalid property %s", row.property)
			}
		}
		if row.id == nil {
			// Submitting rows without ids should be impossible; the wire
			// validators reject them before this point.
			return fmt.Errorf("missing id field in submitted %s row", table.name)
		}
		if *row.id <= lastID {
			return types.ErrDataOutOfOrder
		}
		lastID = *row.id
	}
	return nil
}

// batchCreateTableData bulk-inserts rows, skipping unique-constraint
// conflicts: a remote_id already present for this server is a harmless
// retry-duplicate. Conflict-skipping bulk inserts do not reliably report
// affected rows, so the inserted count comes from a before/after count
// under the per-server lock.
func batchCreateTableData[T any](tx *gorm.DB, server *models.RemoteServer, table string, rows []T) error {
	if len(rows) == 0 {
		return nil
	}

	var before, after int64
	if err := tx.Table(table).Where("server_id = ?", server.ID).Count(&before).Error; err != nil {
		return err
	}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(rows, 1000).Error; err != nil {
		return err
	}
	if err := tx.Table(table).Where("server_id = ?", server.ID).Count(&after).Error; err != nil {
		return err
	}

	inserted := after - before
	if inserted < int64(len(rows)) {
		log.Printf("Dropped %d duplicated rows while saving %d rows of %s for server %s/%s",
			int64(len(rows))-inserted, len(rows), table, server.Hostname, server.UUID)
	}
	return nil
}

// parseAuditExtraData normalizes the extra_data field: absent becomes an
// empty object, an embedded JSON string must itself parse as JSON.
func parseAuditExtraData(raw json.RawMessage) (datatypes.JSON, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return datatypes.JSON("{}"), nil
	}
	if raw[0] == '"' {
		var embedded string
		if err := json.Unmarshal(raw, &embedded); err != nil {
			return nil, types.ErrMalformedAuditLog
		}
		if embedded == "" {
			return datatypes.JSON("{}"), nil
		}
		if !json.Valid([]byte(embedded)) {
			return nil, types.ErrMalformedAuditLog
		}
		return datatypes.JSON(embedded), nil
	}
	return datatypes.JSON(raw), nil
}

// PostAnalytics ingests one analytics submission atomically. The server
// row is locked for the duration of the transaction so concurrent
// submissions from the same server serialize and cannot both validate
// against a stale cursor; unrelated servers proceed in parallel.
func PostAnalytics(db *gorm.DB, serverID uint64, batch AnalyticsBatch) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var server models.RemoteServer
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&server, serverID).Error; err != nil {
			return err
		}

		if batch.Version != nil {
			version := *batch.Version
			if len(version) > models.ServerVersionMaxLength {
				version = version[:models.ServerVersionMaxLength]
			}
			if server.LastVersion == nil || *server.LastVersion != version {
				if err := tx.Model(&server).UpdateColumn("last_version", version).Error; err != nil {
					return err
				}
			}
		}

		if err := validateIncomingTableData(tx, &server, realmCountTable, realmCountIncoming(batch.RealmCounts)); err != nil {
			return err
		}
		if err := validateIncomingTableData(tx, &server, installationCountTable, installationCountIncoming(batch.InstallationCounts)); err != nil {
			return err
		}
		if batch.HasAuditLogRows {
			if err := validateIncomingTableData(tx, &server, realmAuditLogTable, auditLogIncoming(batch.RealmAuditLogRows)); err != nil {
				return err
			}
		}

		// Realm directory sync runs first so newly created realms exist
		// before audit rows referencing them are inserted.
		if batch.HasRealms {
			if err := UpdateRemoteRealmData(tx, &server, batch.Realms); err != nil {
				return err
			}
		}

		realmCounts := make([]models.RemoteRealmCount, 0, len(batch.RealmCounts))
		for _, row := range batch.RealmCounts {
			realmCounts = append(realmCounts, models.RemoteRealmCount{
				ServerID: server.ID,
				RemoteID: row.ID,
				RealmID:  row.Realm,
				Property: row.Property,
				Subgroup: row.Subgroup,
				EndTime:  timestampToTime(row.EndTime),
				Value:    row.Value,
			})
		}
		if err := batchCreateTableData(tx, &server, realmCountTable.name, realmCounts); err != nil {
			return err
		}

		installationCounts := make([]models.RemoteInstallationCount, 0, len(batch.InstallationCounts))
		for _, row := range batch.InstallationCounts {
			installationCounts = append(installationCounts, models.RemoteInstallationCount{
				ServerID: server.ID,
				RemoteID: row.ID,
				Property: row.Property,
				Subgroup: row.Subgroup,
				EndTime:  timestampToTime(row.EndTime),
				Value:    row.Value,
			})
		}
		if err := batchCreateTableData(tx, &server, installationCountTable.name, installationCounts); err != nil {
			return err
		}

		if batch.HasAuditLogRows {
			auditLogs := make([]models.RemoteRealmAuditLog, 0, len(batch.RealmAuditLogRows))
			for _, row := range batch.RealmAuditLogRows {
				extraData, err := parseAuditExtraData(row.ExtraData)
				if err != nil {
					return err
				}
				auditLogs = append(auditLogs, models.RemoteRealmAuditLog{
					ServerID:   server.ID,
					RealmID:    row.Realm,
					RemoteID:   row.ID,
					EventType:  row.EventType,
					EventTime:  timestampToTime(row.EventTime),
					Backfilled: row.Backfilled,
					ExtraData:  models.JSON{JSON: extraData},
				})
			}
			if err := batchCreateTableData(tx, &server, realmAuditLogTable.name, auditLogs); err != nil {
				return err
			}
		}

		return nil
	})
}

func realmCountIncoming(rows []RealmCountRow) []incomingRow {
	incoming := make([]incomingRow, len(rows))
	for i, row := range rows {
		incoming[i] = incomingRow{id: row.ID, property: row.Property}
	}
	return incoming
}

func installationCountIncoming(rows []InstallationCountRow) []incomingRow {
	incoming := make([]incomingRow, len(rows))
	for i, row := range rows {
		incoming[i] = incomingRow{id: row.ID, property: row.Property}
	}
	return incoming
}

func auditLogIncoming(rows []RealmAuditLogRow) []incomingRow {
	incoming := make([]incomingRow, len(rows))
	for i, row := range rows {
		incoming[i] = incomingRow{id: row.ID}
	}
	return incoming
}

// timestampToTime converts a unix timestamp with fractional seconds.
func timestampToTime(ts float64) time.Time {
	seconds := int64(ts)
	nanos := int64((ts - float64(seconds)) * 1e9)
	return time.Unix(seconds, nanos).UTC()
}
