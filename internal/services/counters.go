package services

import (
	"errors"
	"time"

	"github.com/localnerve/push-bouncer/internal/models"
	"gorm.io/gorm"
)

// Properties recorded by the bouncer itself during push dispatch. Remote
// servers may not submit rows with these names.
const (
	StatMobilePushesReceived  = "mobile_pushes_received::day"
	StatMobilePushesForwarded = "mobile_pushes_forwarded::day"
)

// CountStats is the set of count-stat property names accepted from
// remote servers, mirroring the stats the analytics pipeline produces.
var CountStats = map[string]struct{}{
	"messages_sent:is_bot:hour":        {},
	"messages_sent:message_type:day":   {},
	"messages_sent:client:day":         {},
	"messages_in_stream:is_bot:day":    {},
	"messages_read::hour":              {},
	"messages_read_interactions::hour": {},
	"active_users_audit:is_bot:day":    {},
	"active_users:is_bot:day":          {},
	"realm_active_humans::day":         {},
	"1day_actives::day":                {},
	"7day_actives::day":                {},
	"15day_actives::day":               {},
	"minutes_active::day":              {},
	"upload_quota_used_bytes::day":     {},
	"invites_sent::day":                {},
	"mobile_pushes_sent::day":          {},
	StatMobilePushesReceived:           {},
	StatMobilePushesForwarded:          {},
}

// BouncerOnlyStatProperties are valid stat names that only the bouncer
// writes; submissions naming them are rejected during ingestion.
var BouncerOnlyStatProperties = map[string]struct{}{
	StatMobilePushesReceived:  {},
	StatMobilePushesForwarded: {},
}

// dayBucketEnd returns the end of the UTC day bucket containing t.
func dayBucketEnd(t time.Time) time.Time {
	t = t.UTC()
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	if t.Equal(midnight) {
		return midnight
	}
	return midnight.AddDate(0, 0, 1)
}

// IncrementInstallationStat adds increment to the installation-wide
// counter row for (server, property, day bucket), creating the row on
// first use. Counter rows carry a NULL remote_id so the sync cursor
// never sees them.
func IncrementInstallationStat(db *gorm.DB, server *models.RemoteServer, property string, t time.Time, increment int64) error {
	if increment == 0 {
		return nil
	}
	end := dayBucketEnd(t)

	update := func() (int64, error) {
		result := db.Model(&models.RemoteInstallationCount{}).
			Where("server_id = ? AND property = ? AND subgroup IS NULL AND end_time = ? AND remote_id IS NULL",
				server.ID, property, end).
			UpdateColumn("value", gorm.Expr("value + ?", increment))
		return result.RowsAffected, result.Error
	}

	affected, err := update()
	if err != nil || affected > 0 {
		return err
	}

	err = db.Create(&models.RemoteInstallationCount{
		ServerID: server.ID,
		Property: property,
		EndTime:  end,
		Value:    increment,
	}).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// Lost a create race; the row exists now.
		_, err = update()
	}
	return err
}

// IncrementRealmStat is the realm-scoped variant of IncrementInstallationStat.
func IncrementRealmStat(db *gorm.DB, realm *models.RemoteRealm, property string, t time.Time, increment int64) error {
	if increment == 0 {
		return nil
	}
	end := dayBucketEnd(t)

	update := func() (int64, error) {
		result := db.Model(&models.RemoteRealmCount{}).
			Where("server_id = ? AND realm_id = ? AND property = ? AND subgroup IS NULL AND end_time = ? AND remote_id IS NULL",
				realm.ServerID, realm.ID, property, end).
			UpdateColumn("value", gorm.Expr("value + ?", increment))
		return result.RowsAffected, result.Error
	}

	affected, err := update()
	if err != nil || affected > 0 {
		return err
	}

	err = db.Create(&models.RemoteRealmCount{
		ServerID: realm.ServerID,
		RealmID:  int64(realm.ID),
		Property: property,
		EndTime:  end,
		Value:    increment,
	}).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		_, err = update()
	}
	return err
}
