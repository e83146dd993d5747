// registry.go
//
// Mobile push notification relay for self-hosted servers
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of push-bouncer.
// push-bouncer is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// push-bouncer is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with push-bouncer.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

package services

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/localnerve/push-bouncer/internal/models"
	"github.com/localnerve/push-bouncer/internal/types"
	"gorm.io/gorm"
)

// RegisterPushDevice creates a device registration. When the caller
// supplies both identities, any pre-existing user_id-only registration
// for the same (server, token, kind) is deleted first so the stored
// registration migrates toward uuid-only. A conflicting concurrent
// insert is treated as already satisfied.
func RegisterPushDevice(db *gorm.DB, server *models.RemoteServer, token string, kind int, identity UserPushIdentity, iosAppID *string) error {
	return db.Transaction(func(tx *gorm.DB) error {
		registration := models.RemotePushDeviceToken{
			ServerID:  server.ID,
			Kind:      kind,
			Token:     token,
			IOSAppID:  iosAppID,
			CreatedAt: time.Now().UTC(),
		}

		if identity.UserID != nil && identity.UserUUID != nil {
			// Delete the legacy user_id registration for this device so the
			// uuid registration created below becomes the only effective one.
			if err := tx.Where("server_id = ? AND token = ? AND kind = ? AND user_id = ?",
				server.ID, token, kind, *identity.UserID).
				Delete(&models.RemotePushDeviceToken{}).Error; err != nil {
				return err
			}
			registration.UserUUID = identity.UserUUID
		} else {
			registration.UserID = identity.UserID
			registration.UserUUID = identity.UserUUID
		}

		err := tx.Create(&registration).Error
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Retried registration, nothing to do.
			return nil
		}
		return err
	})
}

// UnregisterPushDevice deletes the registrations matching the identity.
// Returns ErrTokenNotFound when nothing matched.
func UnregisterPushDevice(db *gorm.DB, server *models.RemoteServer, token string, kind int, identity UserPushIdentity) error {
	result := identity.Filter(
		db.Where("server_id = ? AND token = ? AND kind = ?", server.ID, token, kind),
	).Delete(&models.RemotePushDeviceToken{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return types.ErrTokenNotFound
	}
	return nil
}

// UnregisterAllPushDevices deletes every registration for the identity on
// the server, regardless of token or platform. Zero matches is not an error.
func UnregisterAllPushDevices(db *gorm.DB, server *models.RemoteServer, identity UserPushIdentity) error {
	return identity.Filter(
		db.Where("server_id = ?", server.ID),
	).Delete(&models.RemotePushDeviceToken{}).Error
}

// LookupPushDevices returns all registrations for the identity on one platform.
func LookupPushDevices(db *gorm.DB, server *models.RemoteServer, kind int, identity UserPushIdentity) ([]models.RemotePushDeviceToken, error) {
	var devices []models.RemotePushDeviceToken
	err := identity.Filter(
		db.Where("server_id = ? AND kind = ?", server.ID, kind),
	).Find(&devices).Error
	return devices, err
}

// DeleteDuplicateRegistrations resolves the legacy double-registration
// state: a uuid-migration bug could leave the same physical device
// registered once by user_id and once by user_uuid. Given registrations
// known to share one platform, it deletes the user_id copy of every
// token that appears exactly twice and returns the surviving set. Three
// or more rows for one token cannot happen and aborts loudly.
func DeleteDuplicateRegistrations(db *gorm.DB, registrations []models.RemotePushDeviceToken, serverID uint64, userID int64, userUUID string) ([]models.RemotePushDeviceToken, error) {
	if len(registrations) == 0 {
		return registrations, nil
	}

	kind := registrations[0].Kind
	for _, registration := range registrations {
		if registration.Kind != kind {
			return nil, fmt.Errorf("registrations of mixed kinds passed for deduplication")
		}
	}

	tokenCounts := make(map[string]int)
	for _, registration := range registrations {
		tokenCounts[registration.Token]++
	}

	var tokensToDeduplicate []string
	for token, count := range tokenCounts {
		if count <= 1 {
			continue
		}
		if count > 2 {
			return nil, fmt.Errorf(
				"more than two registrations for token %s for user id:%d uuid:%s, shouldn't be possible",
				token, userID, userUUID)
		}
		tokensToDeduplicate = append(tokensToDeduplicate, token)
	}

	if len(tokensToDeduplicate) == 0 {
		return registrations, nil
	}

	sort.Strings(tokensToDeduplicate)
	log.Printf("Deduplicating push registrations for server id:%d user id:%d uuid:%s and tokens:%v",
		serverID, userID, userUUID, tokensToDeduplicate)

	if err := db.Where("token IN ? AND kind = ? AND server_id = ? AND user_id = ?",
		tokensToDeduplicate, kind, serverID, userID).
		Delete(&models.RemotePushDeviceToken{}).Error; err != nil {
		return nil, err
	}

	deduplicated := make([]models.RemotePushDeviceToken, 0, len(registrations))
	duplicated := make(map[string]bool, len(tokensToDeduplicate))
	for _, token := range tokensToDeduplicate {
		duplicated[token] = true
	}
	for _, registration := range registrations {
		if duplicated[registration.Token] && registration.UserID != nil {
			// The user_id registrations are the ones just deleted.
			continue
		}
		deduplicated = append(deduplicated, registration)
	}

	return deduplicated, nil
}
