package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DefaultGuard scopes role and permission names when no guard is given.
const DefaultGuard = "api"

// Role represents a named grouping of permissions. Names are unique within a
// guard context.
type Role struct {
	ID          uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string       `gorm:"type:varchar(100);uniqueIndex:idx_roles_name_guard;not null" json:"name"`
	GuardName   string       `gorm:"type:varchar(50);uniqueIndex:idx_roles_name_guard;not null;default:'api'" json:"guard_name"`
	Permissions []Permission `gorm:"many2many:role_permissions;" json:"permissions"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

func (r *Role) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.GuardName == "" {
		r.GuardName = DefaultGuard
	}
	return nil
}

// Permission represents a single named capability. Names are unique within a
// guard context and serve as the stable external reference.
type Permission struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(100);uniqueIndex:idx_permissions_name_guard;not null" json:"name"`
	GuardName string    `gorm:"type:varchar(50);uniqueIndex:idx_permissions_name_guard;not null;default:'api'" json:"guard_name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p *Permission) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.GuardName == "" {
		p.GuardName = DefaultGuard
	}
	return nil
}
