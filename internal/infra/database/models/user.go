package models

import (
	"time"
)

type User struct {
	ID                  int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	SigningPublicKey    string    `json:"signingPublicKey" gorm:"type:text;uniqueIndex:uniq_user_signing_key"`
	Address             string    `json:"address" gorm:"type:text;index"`
	PlatformAddress     *string   `json:"platformAddress" gorm:"type:text;uniqueIndex:uniq_user_platform_address"`
	ExternalPrincipal   *string   `json:"externalPrincipal" gorm:"type:text;index"`
	Username            *string   `json:"username" gorm:"type:text;uniqueIndex:uniq_user_username"`
	DisplayName         string    `json:"displayName" gorm:"type:text"`
	AvatarURL           string    `json:"avatarUrl" gorm:"type:text"`
	Roles               string    `json:"roles" gorm:"type:text;not null;default:''"`
	Status              string    `json:"status" gorm:"type:text;not null;default:'active'"`
	LastAuthenticatedAt time.Time `json:"lastAuthenticatedAt" gorm:"type:timestamp with time zone"`
	CDate               time.Time `json:"cdate" gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp()"`
}

type RoleGrant struct {
	ID          int64      `json:"id" gorm:"primaryKey;autoIncrement"`
	Principal   string     `json:"principal" gorm:"type:text;index;uniqueIndex:uniq_grant_principal_role"`
	RoleName    string     `json:"roleName" gorm:"type:text;uniqueIndex:uniq_grant_principal_role"`
	GrantedBy   string     `json:"grantedBy" gorm:"type:text"`
	Permissions string     `json:"permissions" gorm:"type:text"`
	ExpiresAt   *time.Time `json:"expiresAt" gorm:"type:timestamp with time zone"`
	CDate       time.Time  `json:"cdate" gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp()"`
}
