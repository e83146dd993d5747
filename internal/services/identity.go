package services

import (
	"fmt"

	"gorm.io/gorm"
)

// UserPushIdentity is the push-target identity a remote server reports.
// Either the numeric user id or the opaque user uuid may be present;
// newer servers send both. The caller boundary enforces that at least
// one is set.
type UserPushIdentity struct {
	UserID   *int64
	UserUUID *string
}

// Valid reports whether at least one identity field is present.
func (u UserPushIdentity) Valid() bool {
	return u.UserID != nil || u.UserUUID != nil
}

// Filter narrows a RemotePushDeviceToken query to registrations bound to
// either identity. The OR group is parenthesized so callers can chain
// additional conditions safely.
func (u UserPushIdentity) Filter(db *gorm.DB) *gorm.DB {
	switch {
	case u.UserID != nil && u.UserUUID != nil:
		return db.Where("(user_id = ? OR user_uuid = ?)", *u.UserID, *u.UserUUID)
	case u.UserID != nil:
		return db.Where("user_id = ?", *u.UserID)
	case u.UserUUID != nil:
		return db.Where("user_uuid = ?", *u.UserUUID)
	}
	return db
}

// String renders a stable display form used in log lines.
func (u UserPushIdentity) String() string {
	switch {
	case u.UserID != nil && u.UserUUID != nil:
		return fmt.Sprintf("<id:%d uuid:%s>", *u.UserID, *u.UserUUID)
	case u.UserID != nil:
		return fmt.Sprintf("<id:%d>", *u.UserID)
	case u.UserUUID != nil:
		return fmt.Sprintf("<uuid:%s>", *u.UserUUID)
	}
	return "<empty>"
}
