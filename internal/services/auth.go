package services

import (
	"crypto/subtle"
	"errors"
	"time"

	"github.com/localnerve/push-bouncer/internal/models"
	"github.com/localnerve/push-bouncer/internal/types"
	"gorm.io/gorm"
)

// AuthenticateServer resolves a credential pair (org id, org key) to the
// owning RemoteServer. Unknown ids, key mismatches and deactivated
// servers all produce the same credential error so callers cannot probe
// which org ids exist.
func AuthenticateServer(db *gorm.DB, orgID, orgKey string) (*models.RemoteServer, error) {
	var server models.RemoteServer
	err := db.Where("uuid = ?", orgID).First(&server).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.InvalidServerKey(orgID)
	}
	if err != nil {
		return nil, err
	}
	if subtle.ConstantTimeCompare([]byte(server.APIKey), []byte(orgKey)) != 1 {
		return nil, types.InvalidServerKey(orgID)
	}
	if server.Deactivated {
		return nil, types.InvalidServerKey(orgID)
	}
	return &server, nil
}

// RegisterServer creates a RemoteServer on first contact, or updates the
// mutable fields on re-registration. Re-registration must present the
// current key and may rotate it via newOrgKey. Returns whether the
// record was created.
func RegisterServer(db *gorm.DB, orgID, orgKey, hostname, contactEmail string, newOrgKey *string) (bool, error) {
	var created bool
	err := db.Transaction(func(tx *gorm.DB) error {
		var server models.RemoteServer
		err := tx.Where("uuid = ?", orgID).First(&server).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			server = models.RemoteServer{
				UUID:         orgID,
				APIKey:       orgKey,
				Hostname:     hostname,
				ContactEmail: contactEmail,
			}
			if err := tx.Create(&server).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					// Another first registration for this org id won the race.
					return types.ErrDuplicateRegistration
				}
				return err
			}
			created = true
			return tx.Create(&models.RemoteServerAuditLog{
				ServerID:  server.ID,
				EventType: models.EventTypeRemoteServerCreated,
				EventTime: server.UpdatedAt,
			}).Error

		case err != nil:
			return err
		}

		if subtle.ConstantTimeCompare([]byte(server.APIKey), []byte(orgKey)) != 1 {
			return types.InvalidServerKey(orgID)
		}
		server.Hostname = hostname
		server.ContactEmail = contactEmail
		if newOrgKey != nil {
			server.APIKey = *newOrgKey
		}
		return tx.Save(&server).Error
	})
	return created, err
}

// DeactivateServer flips the active flag and records the event. The
// server keeps its data; nothing is deleted.
func DeactivateServer(db *gorm.DB, server *models.RemoteServer) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(server).UpdateColumn("deactivated", true).Error; err != nil {
			return err
		}
		return tx.Create(&models.RemoteServerAuditLog{
			ServerID:  server.ID,
			EventType: models.EventTypeRemoteServerDeactivated,
			EventTime: time.Now().UTC(),
		}).Error
	})
}
