package models

import (
	"time"
)

// RemoteRealm mirrors one organizational unit ("realm") hosted on a
// RemoteServer. Rows are created and updated only by the realm directory
// sync; deactivation is a flag flip, never a delete.
type RemoteRealm struct {
	ID               uint64 `gorm:"primaryKey;autoIncrement"`
	ServerID         uint64 `gorm:"not null;index:idx_remote_realm_server_uuid,unique"`
	Server           RemoteServer
	UUID             string    `gorm:"type:char(36);not null;index:idx_remote_realm_server_uuid,unique"`
	UUIDOwnerSecret  string    `gorm:"size:128;not null"`
	Host             string    `gorm:"size:128;not null"`
	RealmDateCreated time.Time `gorm:"not null"`
	RealmDeactivated bool      `gorm:"not null;default:false"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// TableName overrides the table name for RemoteRealm
func (RemoteRealm) TableName() string {
	return "remote_realms"
}
