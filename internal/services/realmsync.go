package services

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/localnerve/push-bouncer/internal/models"
	"github.com/localnerve/push-bouncer/internal/types"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// RealmInfo is the wire shape of one realm in the directory snapshot a
// remote server submits alongside analytics.
type RealmInfo struct {
	ID              int64   `json:"id"`
	UUID            string  `json:"uuid"`
	UUIDOwnerSecret string  `json:"uuid_owner_secret"`
	Host            string  `json:"host"`
	URL             string  `json:"url"`
	Deactivated     bool    `json:"deactivated"`
	DateCreated     float64 `json:"date_created"`
}

// UpdateRemoteRealmData reconciles a server's reported realm directory
// against the local mirror. Unknown realm UUIDs get a new mirror row; a
// creation collision means another reconcile won the race and is
// reported as a duplicate registration. Known realms are compared on
// their mutable attributes only, and each changed attribute appends one
// audit entry recording the old and new value.
func UpdateRemoteRealmData(tx *gorm.DB, server *models.RemoteServer, realms []RealmInfo) error {
	uuids := make([]string, 0, len(realms))
	for _, realm := range realms {
		uuids = append(uuids, realm.UUID)
	}

	var registered []models.RemoteRealm
	if err := tx.Where("server_id = ? AND uuid IN ?", server.ID, uuids).
		Find(&registered).Error; err != nil {
		return err
	}
	registeredByUUID := make(map[string]*models.RemoteRealm, len(registered))
	for i := range registered {
		registeredByUUID[registered[i].UUID] = &registered[i]
	}

	newRealms := make([]models.RemoteRealm, 0)
	for _, realm := range realms {
		if _, known := registeredByUUID[realm.UUID]; known {
			continue
		}
		newRealms = append(newRealms, models.RemoteRealm{
			ServerID:         server.ID,
			UUID:             realm.UUID,
			UUIDOwnerSecret:  realm.UUIDOwnerSecret,
			Host:             realm.Host,
			RealmDateCreated: timestampToTime(realm.DateCreated),
			RealmDeactivated: realm.Deactivated,
		})
	}
	if len(newRealms) > 0 {
		if err := tx.Create(&newRealms).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return types.ErrDuplicateRegistration
			}
			return err
		}
	}

	infoByUUID := make(map[string]RealmInfo, len(realms))
	for _, realm := range realms {
		infoByUUID[realm.UUID] = realm
	}

	now := time.Now().UTC()
	for i := range registered {
		mirror := &registered[i]
		info := infoByUUID[mirror.UUID]

		auditLogs, modified, err := diffRealmAttrs(server, mirror, info, now)
		if err != nil {
			return err
		}
		if !modified {
			continue
		}
		if err := tx.Model(mirror).
			Select("host", "realm_deactivated").
			Updates(map[string]interface{}{
				"host":              mirror.Host,
				"realm_deactivated": mirror.RealmDeactivated,
			}).Error; err != nil {
			return err
		}
		if err := tx.Create(&auditLogs).Error; err != nil {
			return err
		}
	}

	return nil
}

// diffRealmAttrs applies the synced attributes of info to mirror and
// returns one audit entry per changed attribute.
func diffRealmAttrs(server *models.RemoteServer, mirror *models.RemoteRealm, info RealmInfo, now time.Time) ([]models.RemoteRealmAuditLog, bool, error) {
	type attrChange struct {
		name     string
		oldValue interface{}
		newValue interface{}
	}

	var changes []attrChange
	if mirror.Host != info.Host {
		changes = append(changes, attrChange{"host", mirror.Host, info.Host})
		mirror.Host = info.Host
	}
	if mirror.RealmDeactivated != info.Deactivated {
		changes = append(changes, attrChange{"realm_deactivated", mirror.RealmDeactivated, info.Deactivated})
		mirror.RealmDeactivated = info.Deactivated
	}
	if len(changes) == 0 {
		return nil, false, nil
	}

	auditLogs := make([]models.RemoteRealmAuditLog, 0, len(changes))
	for _, change := range changes {
		extraData, err := json.Marshal(map[string]interface{}{
			"attr_name": change.name,
			"old_value": change.oldValue,
			"new_value": change.newValue,
		})
		if err != nil {
			return nil, false, err
		}
		remoteRealmID := mirror.ID
		auditLogs = append(auditLogs, models.RemoteRealmAuditLog{
			ServerID:      server.ID,
			RealmID:       info.ID,
			RemoteRealmID: &remoteRealmID,
			EventType:     models.EventTypeRemoteRealmValueUpdated,
			EventTime:     now,
			ExtraData:     models.JSON{JSON: datatypes.JSON(extraData)},
		})
	}
	return auditLogs, true, nil
}
