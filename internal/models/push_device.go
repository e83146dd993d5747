package models

import (
	"time"
)

// Push token kinds. The wire protocol uses the numeric values.
const (
	PushKindAPNS = 1
	PushKindGCM  = 2
)

// PushTokenMaxLength caps the accepted device token size.
const PushTokenMaxLength = 4096

// RemotePushDeviceToken binds one push-capable device to a user on a
// remote server. A registration is keyed by either the numeric UserID or
// the opaque UserUUID, never both. The two separate unique indexes mean a
// device migrating from id-based to uuid-based registration can briefly
// hold two rows; DeleteDuplicateRegistrations resolves that pair.
type RemotePushDeviceToken struct {
	ID       uint64 `gorm:"primaryKey;autoIncrement"`
	ServerID uint64 `gorm:"not null;index:idx_push_device_user_id,unique;index:idx_push_device_user_uuid,unique"`
	Server   RemoteServer
	Kind     int     `gorm:"not null;index:idx_push_device_user_id,unique;index:idx_push_device_user_uuid,unique"`
	// The unique indexes use a token prefix; full 4096-char tokens exceed
	// MariaDB's index key limit.
	Token    string  `gorm:"size:4096;not null;index:idx_push_device_user_id,unique,length:191;index:idx_push_device_user_uuid,unique,length:191"`
	UserID   *int64  `gorm:"index:idx_push_device_user_id,unique"`
	UserUUID *string `gorm:"type:char(36);index:idx_push_device_user_uuid,unique"`
	IOSAppID *string `gorm:"size:255"`
	CreatedAt time.Time
}

// TableName overrides the table name for RemotePushDeviceToken
func (RemotePushDeviceToken) TableName() string {
	return "remote_push_device_tokens"
}
