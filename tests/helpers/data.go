// data.go
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

package helpers

import (
	"testing"
	"time"

	"github.com/localnerve/push-bouncer/internal/models"
	"gorm.io/gorm"
)

// CreateTestServer creates a registered remote server.
func CreateTestServer(t *testing.T, db *gorm.DB, orgID, orgKey string) *models.RemoteServer {
	t.Helper()
	server := models.RemoteServer{
		UUID:         orgID,
		APIKey:       orgKey,
		Hostname:     "demo.example.com",
		ContactEmail: "admin@example.com",
	}
	if err := db.Create(&server).Error; err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	return &server
}

// CreateTestRealm creates a mirrored realm for a server.
func CreateTestRealm(t *testing.T, db *gorm.DB, server *models.RemoteServer, realmUUID string) *models.RemoteRealm {
	t.Helper()
	realm := models.RemoteRealm{
		ServerID:         server.ID,
		UUID:             realmUUID,
		UUIDOwnerSecret:  "secret-" + realmUUID,
		Host:             "realm.example.com",
		RealmDateCreated: time.Now().UTC(),
	}
	if err := db.Create(&realm).Error; err != nil {
		t.Fatalf("Failed to create realm: %v", err)
	}
	return &realm
}

// CreateTestDevice creates a push device token registration.
func CreateTestDevice(t *testing.T, db *gorm.DB, server *models.RemoteServer, kind int, token string, userID *int64, userUUID *string) *models.RemotePushDeviceToken {
	t.Helper()
	device := models.RemotePushDeviceToken{
		ServerID: server.ID,
		Kind:     kind,
		Token:    token,
		UserID:   userID,
		UserUUID: userUUID,
	}
	if err := db.Create(&device).Error; err != nil {
		t.Fatalf("Failed to create device token: %v", err)
	}
	return &device
}

// CreateTestRealmCount inserts one already-ingested realm count row.
func CreateTestRealmCount(t *testing.T, db *gorm.DB, server *models.RemoteServer, remoteID int64, property string, value int64) {
	t.Helper()
	row := models.RemoteRealmCount{
		ServerID: server.ID,
		RemoteID: &remoteID,
		RealmID:  1,
		Property: property,
		EndTime:  time.Now().UTC(),
		Value:    value,
	}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("Failed to create realm count row: %v", err)
	}
}

// Int64Ptr returns a pointer to the given value.
func Int64Ptr(v int64) *int64 {
	return &v
}

// StrPtr returns a pointer to the given value.
func StrPtr(v string) *string {
	return &v
}
