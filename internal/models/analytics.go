package models

import (
	"time"
)

// Analytics rows are ingested from remote servers. RemoteID is the row id
// as assigned by the origin server; it is unique per server but not
// globally. Rows with a NULL RemoteID are produced by the bouncer itself
// (push delivery counters) and are excluded from the sync cursor.

// RemoteRealmCount is one realm-scoped analytics data point.
type RemoteRealmCount struct {
	ID       uint64 `gorm:"primaryKey;autoIncrement"`
	ServerID uint64 `gorm:"not null;index;index:idx_remote_realm_count_remote,unique"`
	Server   RemoteServer
	RemoteID *int64    `gorm:"index:idx_remote_realm_count_remote,unique"`
	RealmID  int64     `gorm:"not null"`
	Property string    `gorm:"size:32;not null;index"`
	Subgroup *string   `gorm:"size:16"`
	EndTime  time.Time `gorm:"not null"`
	Value    int64     `gorm:"not null"`
}

// RemoteInstallationCount is one installation-wide analytics data point.
type RemoteInstallationCount struct {
	ID       uint64 `gorm:"primaryKey;autoIncrement"`
	ServerID uint64 `gorm:"not null;index;index:idx_remote_installation_count_remote,unique"`
	Server   RemoteServer
	RemoteID *int64    `gorm:"index:idx_remote_installation_count_remote,unique"`
	Property string    `gorm:"size:32;not null;index"`
	Subgroup *string   `gorm:"size:16"`
	EndTime  time.Time `gorm:"not null"`
	Value    int64     `gorm:"not null"`
}

// RemoteRealmAuditLog is one audit event synced from a remote server, or
// generated locally by the realm directory sync (RemoteID NULL,
// RemoteRealmID set).
type RemoteRealmAuditLog struct {
	ID            uint64 `gorm:"primaryKey;autoIncrement"`
	ServerID      uint64 `gorm:"not null;index;index:idx_remote_realm_audit_log_remote,unique"`
	Server        RemoteServer
	RealmID       int64   `gorm:"not null;index"`
	RemoteRealmID *uint64 `gorm:"index"`
	RemoteID      *int64  `gorm:"index:idx_remote_realm_audit_log_remote,unique"`
	EventType     int     `gorm:"not null;index"`
	EventTime     time.Time `gorm:"not null"`
	Backfilled    bool      `gorm:"not null;default:false"`
	ExtraData     JSON      `gorm:"type:json"`
}

// TableName overrides the table name for RemoteRealmCount
func (RemoteRealmCount) TableName() string {
	return "remote_realm_counts"
}

// TableName overrides the table name for RemoteInstallationCount
func (RemoteInstallationCount) TableName() string {
	return "remote_installation_counts"
}

// TableName overrides the table name for RemoteRealmAuditLog
func (RemoteRealmAuditLog) TableName() string {
	return "remote_realm_audit_logs"
}
