package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"moiledger/internal/apperr"

	"gorm.io/gorm"
)

var emailRe = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

var ErrInvalidCredentials = errors.New("invalid credentials")

const minPasswordLen = 6

type Service struct {
	DB *gorm.DB
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))

	if len(in.Name) < 2 {
		return nil, apperr.Invalid("name", "name must be at least 2 characters")
	}
	if !emailRe.MatchString(in.Email) {
		return nil, apperr.Invalid("email", "invalid email address")
	}
	if len(in.Password) < minPasswordLen {
		return nil, apperr.Invalid("password", "password must be at least 6 characters")
	}

	var existing int64
	if err := s.DB.WithContext(ctx).Model(&User{}).Where("email = ?", in.Email).Count(&existing).Error; err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if existing > 0 {
		return nil, apperr.Conflict("an account with this email already exists")
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := User{Name: in.Name, Email: in.Email, PasswordHash: hash}
	if err := s.DB.WithContext(ctx).Create(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.Conflict("an account with this email already exists")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &u, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (*User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return nil, apperr.Invalid("", "email and password are required")
	}

	var u User
	if err := s.DB.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !ComparePassword(u.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return &u, nil
}

func (s *Service) Get(ctx context.Context, id string) (*User, error) {
	var u User
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("user")
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	return &u, nil
}

type ProfileUpdate struct {
	Name            *string
	CurrentPassword string
	NewPassword     string
}

// UpdateProfile renames the user and/or changes the password. A password change
// requires the current password.
func (s *Service) UpdateProfile(ctx context.Context, id string, in ProfileUpdate) (*User, error) {
	u, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if len(name) < 2 {
			return nil, apperr.Invalid("name", "name must be at least 2 characters")
		}
		updates["name"] = name
	}
	if in.NewPassword != "" {
		if len(in.NewPassword) < minPasswordLen {
			return nil, apperr.Invalid("newPassword", "new password must be at least 6 characters")
		}
		if !ComparePassword(u.PasswordHash, in.CurrentPassword) {
			return nil, apperr.Invalid("currentPassword", "current password is incorrect")
		}
		hash, err := HashPassword(in.NewPassword)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		updates["password_hash"] = hash
	}
	if len(updates) == 0 {
		return u, nil
	}

	if err := s.DB.WithContext(ctx).Model(u).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return s.Get(ctx, id)
}
