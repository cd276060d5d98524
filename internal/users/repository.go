package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Cabralneto/site-tracker-pro/pkg/workflows"
)

// Repository defines user, role and invite persistence.
type Repository interface {
	GetProfile(ctx context.Context, id uuid.UUID) (*Profile, error)
	GetProfileByEmail(ctx context.Context, email string) (*Profile, error)
	ListUsers(ctx context.Context) ([]UserView, error)
	CreateProfile(ctx context.Context, profile *Profile, role workflows.Role) error
	DeleteProfile(ctx context.Context, id uuid.UUID) error
	SetProfileAtivo(ctx context.Context, id uuid.UUID, ativo bool) error
	SetPassword(ctx context.Context, id uuid.UUID, hash string) error

	RolesFor(ctx context.Context, userID uuid.UUID) (workflows.RoleSet, error)
	AssignRole(ctx context.Context, userID uuid.UUID, role workflows.Role) error
	RevokeRole(ctx context.Context, userID uuid.UUID, role workflows.Role) error

	CreateInvite(ctx context.Context, invite *Invite) error
	GetInviteByTokenHash(ctx context.Context, tokenHash string) (*Invite, error)
	LatestInviteForEmail(ctx context.Context, email string) (*Invite, error)
	UpdateInvite(ctx context.Context, invite *Invite) error
	CountRecentInvites(ctx context.Context, createdBy uuid.UUID, since time.Time) (int64, error)
}

type GormRepository struct {
	db *gorm.DB
}

func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func (r *GormRepository) GetProfile(ctx context.Context, id uuid.UUID) (*Profile, error) {
	var profile Profile
	if err := r.db.WithContext(ctx).First(&profile, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return &profile, nil
}

func (r *GormRepository) GetProfileByEmail(ctx context.Context, email string) (*Profile, error) {
	var profile Profile
	if err := r.db.WithContext(ctx).First(&profile, "LOWER(email) = LOWER(?)", email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get profile by email: %w", err)
	}
	return &profile, nil
}

func (r *GormRepository) ListUsers(ctx context.Context) ([]UserView, error) {
	var profiles []Profile
	if err := r.db.WithContext(ctx).Order("nome ASC").Find(&profiles).Error; err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}

	var roles []UserRole
	if err := r.db.WithContext(ctx).Find(&roles).Error; err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}

	byUser := make(map[uuid.UUID][]workflows.Role)
	for _, ur := range roles {
		byUser[ur.UserID] = append(byUser[ur.UserID], ur.Role)
	}

	views := make([]UserView, 0, len(profiles))
	for _, p := range profiles {
		views = append(views, UserView{Profile: p, Roles: byUser[p.ID]})
	}
	return views, nil
}

// CreateProfile inserts the profile and its initial role atomically.
func (r *GormRepository) CreateProfile(ctx context.Context, profile *Profile, role workflows.Role) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(profile).Error; err != nil {
			return fmt.Errorf("failed to create profile: %w", err)
		}
		if role != "" {
			ur := &UserRole{ID: uuid.New(), UserID: profile.ID, Role: role}
			if err := tx.Create(ur).Error; err != nil {
				return fmt.Errorf("failed to assign role: %w", err)
			}
		}
		return nil
	})
}

// DeleteProfile removes the user and its roles.
func (r *GormRepository) DeleteProfile(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", id).Delete(&UserRole{}).Error; err != nil {
			return fmt.Errorf("failed to delete roles: %w", err)
		}
		res := tx.Delete(&Profile{}, "id = ?", id)
		if res.Error != nil {
			return fmt.Errorf("failed to delete profile: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrUserNotFound
		}
		return nil
	})
}

func (r *GormRepository) SetProfileAtivo(ctx context.Context, id uuid.UUID, ativo bool) error {
	res := r.db.WithContext(ctx).Model(&Profile{}).Where("id = ?", id).Update("ativo", ativo)
	if res.Error != nil {
		return fmt.Errorf("failed to update profile: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *GormRepository) SetPassword(ctx context.Context, id uuid.UUID, hash string) error {
	res := r.db.WithContext(ctx).Model(&Profile{}).Where("id = ?", id).Update("password_hash", hash)
	if res.Error != nil {
		return fmt.Errorf("failed to set password: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *GormRepository) RolesFor(ctx context.Context, userID uuid.UUID) (workflows.RoleSet, error) {
	var roles []UserRole
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Find(&roles).Error; err != nil {
		return nil, fmt.Errorf("failed to load roles: %w", err)
	}
	set := make(workflows.RoleSet, len(roles))
	for _, ur := range roles {
		set[ur.Role] = true
	}
	return set, nil
}

func (r *GormRepository) AssignRole(ctx context.Context, userID uuid.UUID, role workflows.Role) error {
	ur := &UserRole{ID: uuid.New(), UserID: userID, Role: role}
	if err := r.db.WithContext(ctx).Create(ur).Error; err != nil {
		return fmt.Errorf("failed to assign role: %w", err)
	}
	return nil
}

func (r *GormRepository) RevokeRole(ctx context.Context, userID uuid.UUID, role workflows.Role) error {
	if err := r.db.WithContext(ctx).Where("user_id = ? AND role = ?", userID, role).Delete(&UserRole{}).Error; err != nil {
		return fmt.Errorf("failed to revoke role: %w", err)
	}
	return nil
}

func (r *GormRepository) CreateInvite(ctx context.Context, invite *Invite) error {
	if err := r.db.WithContext(ctx).Create(invite).Error; err != nil {
		return fmt.Errorf("failed to create invite: %w", err)
	}
	return nil
}

func (r *GormRepository) GetInviteByTokenHash(ctx context.Context, tokenHash string) (*Invite, error) {
	var invite Invite
	if err := r.db.WithContext(ctx).First(&invite, "token_hash = ?", tokenHash).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInviteNotFound
		}
		return nil, fmt.Errorf("failed to get invite: %w", err)
	}
	return &invite, nil
}

func (r *GormRepository) LatestInviteForEmail(ctx context.Context, email string) (*Invite, error) {
	var invite Invite
	err := r.db.WithContext(ctx).
		Where("LOWER(email) = LOWER(?) AND accepted_at IS NULL", email).
		Order("sent_at DESC").First(&invite).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInviteNotFound
		}
		return nil, fmt.Errorf("failed to get invite: %w", err)
	}
	return &invite, nil
}

func (r *GormRepository) UpdateInvite(ctx context.Context, invite *Invite) error {
	if err := r.db.WithContext(ctx).Save(invite).Error; err != nil {
		return fmt.Errorf("failed to update invite: %w", err)
	}
	return nil
}

func (r *GormRepository) CountRecentInvites(ctx context.Context, createdBy uuid.UUID, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&Invite{}).
		Where("created_by = ? AND sent_at >= ?", createdBy, since).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count invites: %w", err)
	}
	return count, nil
}
