package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/metanet-platform/scaffold-app/internal/domain"
	"github.com/metanet-platform/scaffold-app/internal/infra/database/models"
)

type RoleRepository struct {
	db *gorm.DB
}

func NewRoleRepository(db *gorm.DB) *RoleRepository {
	return &RoleRepository{db: db}
}

// Upsert creates or refreshes the grant row for (principal, role).
// Re-granting overwrites the grantor, permissions and expiry in place
// so a pair never accumulates duplicate rows.
func (r *RoleRepository) Upsert(ctx context.Context, grant domain.RoleGrant) (domain.RoleGrant, error) {
	record := models.RoleGrant{
		Principal:   grant.Principal,
		RoleName:    grant.RoleName,
		GrantedBy:   grant.GrantedBy,
		Permissions: strings.Join(grant.Permissions, ","),
		ExpiresAt:   grant.ExpiresAt,
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "principal"}, {Name: "role_name"}},
		DoUpdates: clause.AssignmentColumns([]string{"granted_by", "permissions", "expires_at"}),
	}).Create(&record).Error
	if err != nil {
		return domain.RoleGrant{}, err
	}

	// on conflict the upsert does not report the surviving row's id or
	// creation time, so read it back
	err = r.db.WithContext(ctx).
		Where("principal = ? AND role_name = ?", grant.Principal, grant.RoleName).
		Take(&record).Error
	if err != nil {
		return domain.RoleGrant{}, err
	}

	return grantFromModel(record), nil
}

func (r *RoleRepository) ListByPrincipal(ctx context.Context, principal string) ([]domain.RoleGrant, error) {
	var records []models.RoleGrant
	err := r.db.WithContext(ctx).
		Where("principal = ?", principal).
		Order("id").
		Find(&records).Error
	if err != nil {
		return nil, err
	}

	grants := make([]domain.RoleGrant, 0, len(records))
	for _, record := range records {
		grants = append(grants, grantFromModel(record))
	}
	return grants, nil
}

func grantFromModel(record models.RoleGrant) domain.RoleGrant {
	var permissions []string
	if record.Permissions != "" {
		permissions = strings.Split(record.Permissions, ",")
	}
	return domain.RoleGrant{
		ID:          record.ID,
		Principal:   record.Principal,
		RoleName:    record.RoleName,
		Permissions: permissions,
		GrantedBy:   record.GrantedBy,
		ExpiresAt:   record.ExpiresAt,
		CreatedAt:   record.CDate,
	}
}
