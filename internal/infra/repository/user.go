package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/zeebo/xxh3"
	"gorm.io/gorm"

	"github.com/metanet-platform/scaffold-app/internal/domain"
	"github.com/metanet-platform/scaffold-app/internal/infra/database/models"
)

const userCacheTTL = 60 // seconds

type UserRepository struct {
	db *gorm.DB
	mc *memcache.Client
}

func NewUserRepository(db *gorm.DB, mc *memcache.Client) *UserRepository {
	return &UserRepository{db: db, mc: mc}
}

func userCacheKey(signingKey string) string {
	return fmt.Sprintf("user:%x", xxh3.HashString(signingKey))
}

func (r *UserRepository) GetBySigningKey(ctx context.Context, key string) (domain.User, error) {

	if r.mc != nil {
		if item, err := r.mc.Get(userCacheKey(key)); err == nil {
			var record models.User
			if err := json.Unmarshal(item.Value, &record); err == nil {
				return userFromModel(record), nil
			}
		}
	}

	var record models.User
	err := r.db.WithContext(ctx).
		Where("signing_public_key = ?", key).
		Take(&record).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, domain.NotFoundError{Resource: "user"}
		}
		return domain.User{}, err
	}

	r.cache(record)

	return userFromModel(record), nil
}

func (r *UserRepository) GetByPlatformAddress(ctx context.Context, address string) (domain.User, error) {
	var record models.User
	err := r.db.WithContext(ctx).
		Where("platform_address = ?", address).
		Take(&record).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, domain.NotFoundError{Resource: "user"}
		}
		return domain.User{}, err
	}
	return userFromModel(record), nil
}

func (r *UserRepository) GetByUsername(ctx context.Context, name string) (domain.User, error) {
	var record models.User
	err := r.db.WithContext(ctx).
		Where("username = ?", name).
		Take(&record).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, domain.NotFoundError{Resource: "user"}
		}
		return domain.User{}, err
	}
	return userFromModel(record), nil
}

func (r *UserRepository) Create(ctx context.Context, user domain.User) (domain.User, error) {
	record := userToModel(user)
	err := r.db.WithContext(ctx).Create(&record).Error
	if err != nil {
		if err == gorm.ErrDuplicatedKey {
			return domain.User{}, domain.ConflictError{}
		}
		return domain.User{}, err
	}
	return userFromModel(record), nil
}

func (r *UserRepository) Update(ctx context.Context, user domain.User) (domain.User, error) {
	record := userToModel(user)
	err := r.db.WithContext(ctx).Save(&record).Error
	if err != nil {
		if err == gorm.ErrDuplicatedKey {
			return domain.User{}, domain.ConflictError{}
		}
		return domain.User{}, err
	}

	if r.mc != nil {
		r.mc.Delete(userCacheKey(record.SigningPublicKey))
	}

	return userFromModel(record), nil
}

// HasAnyAdmin scans the directory for an admin role. Callers are
// expected to cache the answer; this query walks the whole table in
// the worst case.
func (r *UserRepository) HasAnyAdmin(ctx context.Context) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.User{}).
		Where("',' || roles || ',' LIKE ?", "%,"+domain.RoleAdmin+",%").
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *UserRepository) cache(record models.User) {
	if r.mc == nil {
		return
	}
	serialized, err := json.Marshal(record)
	if err != nil {
		return
	}
	r.mc.Set(&memcache.Item{
		Key:        userCacheKey(record.SigningPublicKey),
		Value:      serialized,
		Expiration: userCacheTTL,
	})
}

func userFromModel(record models.User) domain.User {
	return domain.User{
		ID:                  record.ID,
		SigningPublicKey:    record.SigningPublicKey,
		Address:             record.Address,
		PlatformAddress:     record.PlatformAddress,
		ExternalPrincipal:   record.ExternalPrincipal,
		Username:            record.Username,
		DisplayName:         record.DisplayName,
		AvatarURL:           record.AvatarURL,
		Roles:               splitRoles(record.Roles),
		Status:              domain.UserStatus(record.Status),
		LastAuthenticatedAt: record.LastAuthenticatedAt,
		CreatedAt:           record.CDate,
	}
}

func userToModel(user domain.User) models.User {
	return models.User{
		ID:                  user.ID,
		SigningPublicKey:    user.SigningPublicKey,
		Address:             user.Address,
		PlatformAddress:     user.PlatformAddress,
		ExternalPrincipal:   user.ExternalPrincipal,
		Username:            user.Username,
		DisplayName:         user.DisplayName,
		AvatarURL:           user.AvatarURL,
		Roles:               strings.Join(user.Roles, ","),
		Status:              string(user.Status),
		LastAuthenticatedAt: user.LastAuthenticatedAt,
		CDate:               user.CreatedAt,
	}
}

func splitRoles(joined string) []string {
	if joined == "" {
		return nil
	}
	return strings.Split(joined, ",")
}
