package users

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/shopflow-backend/pkg/db/models"
	"github.com/angelmondragon/shopflow-backend/pkg/enums"
)

// UserDTO is the transport shape of an actor.
type UserDTO struct {
	ID        uuid.UUID      `json:"id"`
	Email     string         `json:"email"`
	Name      string         `json:"name"`
	Role      enums.UserRole `json:"role"`
	IsActive  bool           `json:"isActive"`
	CreatedAt time.Time      `json:"createdAt"`
}

// CreateUserDTO holds the data required by the repo to persist a new user.
type CreateUserDTO struct {
	Email    string
	Name     string
	Role     enums.UserRole
	IsActive *bool
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}
	return &UserDTO{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Role:      u.Role,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
	}
}

func (dto CreateUserDTO) ToModel() *models.User {
	active := true
	if dto.IsActive != nil {
		active = *dto.IsActive
	}
	role := dto.Role
	if role == "" {
		role = enums.RoleCustomer
	}
	return &models.User{
		Email:    strings.ToLower(strings.TrimSpace(dto.Email)),
		Name:     strings.TrimSpace(dto.Name),
		Role:     role,
		IsActive: active,
	}
}
