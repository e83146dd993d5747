package models

import (
	"time"
)

// Field length limits shared with request validation.
const (
	ServerUUIDLength        = 36
	ServerAPIKeyLength      = 64
	ServerHostnameMaxLength = 128
	ServerVersionMaxLength  = 48
)

// Audit log event types recorded for server lifecycle changes.
const (
	EventTypeRemoteServerCreated     = 215
	EventTypeRemoteServerDeactivated = 216
	EventTypeRemoteRealmValueUpdated = 20001
)

// RemoteServer identifies one self-hosted deployment talking to the bouncer.
// The UUID is the stable identity; the API key is the shared secret the
// server authenticates with and may be rotated on re-registration.
type RemoteServer struct {
	ID           uint64 `gorm:"primaryKey;autoIncrement"`
	UUID         string `gorm:"type:char(36);uniqueIndex;not null"`
	APIKey       string `gorm:"size:64;not null"`
	Hostname     string `gorm:"size:128;not null"`
	ContactEmail string `gorm:"size:255;not null"`
	LastVersion  *string `gorm:"size:48"`
	Deactivated  bool    `gorm:"not null;default:false"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RemoteServerAuditLog is an append-only record of server lifecycle events
// (registration, deactivation). These rows are bouncer-internal and are
// never part of the analytics sync protocol.
type RemoteServerAuditLog struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	ServerID  uint64 `gorm:"not null;index"`
	Server    RemoteServer
	EventType int       `gorm:"not null"`
	EventTime time.Time `gorm:"not null"`
}

// TableName overrides the table name for RemoteServer
func (RemoteServer) TableName() string {
	return "remote_servers"
}

// TableName overrides the table name for RemoteServerAuditLog
func (RemoteServerAuditLog) TableName() string {
	return "remote_server_audit_logs"
}
