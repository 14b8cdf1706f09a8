package family

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"moiledger/internal/apperr"
	"moiledger/internal/auth"
	"moiledger/internal/mail"
	"moiledger/internal/notify"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var ErrMailDisabled = errors.New("invite mail is not configured")

// Service creates families, admits members and resolves the family scope that the
// returns and analytics engines run over.
type Service struct {
	DB     *gorm.DB
	Notify *notify.Service
	Mail   mail.Sender // optional
	Log    logrus.FieldLogger
}

type CreateInput struct {
	Name        string
	Description *string
}

func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (*Family, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, apperr.Invalid("name", "family name is required")
	}

	code, err := NewInviteCode()
	if err != nil {
		return nil, err
	}

	f := Family{
		Name:        in.Name,
		Description: trimmedOrNil(in.Description),
		InviteCode:  code,
		CreatedBy:   userID,
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&f).Error; err != nil {
			return err
		}
		return tx.Create(&Membership{UserID: userID, FamilyID: f.ID, Role: RoleAdmin}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("create family: %w", err)
	}
	return &f, nil
}

// ListForUser returns every family the user belongs to together with their role.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]WithRole, error) {
	out := []WithRole{}
	err := s.DB.WithContext(ctx).
		Table("families").
		Select("families.*, memberships.role AS role").
		Joins("JOIN memberships ON memberships.family_id = families.id").
		Where("memberships.user_id = ?", userID).
		Order("memberships.joined_at asc").
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list families: %w", err)
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, userID, familyID string) (*WithRole, error) {
	role, err := s.RequireMember(ctx, userID, familyID)
	if err != nil {
		return nil, err
	}
	f, err := s.load(ctx, s.DB, familyID)
	if err != nil {
		return nil, err
	}
	return &WithRole{Family: *f, Role: role}, nil
}

type UpdateInput struct {
	Name        *string
	Description *string
}

func (s *Service) Update(ctx context.Context, userID, familyID string, in UpdateInput) (*Family, error) {
	if _, err := s.RequireAdmin(ctx, userID, familyID); err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, apperr.Invalid("name", "family name is required")
		}
		updates["name"] = name
	}
	if in.Description != nil {
		updates["description"] = trimmedOrNil(in.Description)
	}
	if len(updates) > 0 {
		if err := s.DB.WithContext(ctx).Model(&Family{}).Where("id = ?", familyID).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("update family: %w", err)
		}
	}
	return s.load(ctx, s.DB, familyID)
}

// Join admits the user as a member of the family owning the invite code.
func (s *Service) Join(ctx context.Context, userID, inviteCode string) (*Family, error) {
	inviteCode = strings.TrimSpace(inviteCode)
	if inviteCode == "" {
		return nil, apperr.Invalid("inviteCode", "invite code is required")
	}

	var f Family
	if err := s.DB.WithContext(ctx).Where("invite_code = ?", inviteCode).First(&f).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("invalid invite code")
		}
		return nil, fmt.Errorf("load family: %w", err)
	}

	if _, ok, err := s.Role(ctx, userID, f.ID); err != nil {
		return nil, err
	} else if ok {
		return nil, apperr.Conflict("already a member of this family")
	}

	err := s.DB.WithContext(ctx).Create(&Membership{UserID: userID, FamilyID: f.ID, Role: RoleMember}).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.Conflict("already a member of this family")
		}
		return nil, fmt.Errorf("create membership: %w", err)
	}

	s.notifyJoin(ctx, userID, &f)
	return &f, nil
}

func (s *Service) notifyJoin(ctx context.Context, userID string, f *Family) {
	if s.Notify == nil {
		return
	}
	joiner := "Someone"
	var u auth.User
	if err := s.DB.WithContext(ctx).Select("name").Where("id = ?", userID).First(&u).Error; err == nil && u.Name != "" {
		joiner = u.Name
	}
	_, err := s.Notify.Create(ctx, notify.Input{
		UserID:   f.CreatedBy,
		FamilyID: &f.ID,
		Type:     notify.TypeFamilyInvite,
		Title:    "New Family Member",
		Message:  fmt.Sprintf("%s joined %s", joiner, f.Name),
	})
	if err != nil {
		s.Log.WithError(err).WithField("family_id", f.ID).Warn("join notification failed")
	}
}

func (s *Service) Members(ctx context.Context, userID, familyID string) ([]Member, error) {
	if _, err := s.RequireMember(ctx, userID, familyID); err != nil {
		return nil, err
	}

	type row struct {
		Membership
		UserName  string
		UserEmail string
	}
	var rows []row
	err := s.DB.WithContext(ctx).
		Table("memberships").
		Select("memberships.*, users.name AS user_name, users.email AS user_email").
		Joins("JOIN users ON users.id = memberships.user_id").
		Where("memberships.family_id = ?", familyID).
		Order("memberships.joined_at asc").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}

	out := make([]Member, 0, len(rows))
	for _, r := range rows {
		out = append(out, Member{
			Membership: r.Membership,
			User:       MemberUser{ID: r.UserID, Name: r.UserName, Email: r.UserEmail},
		})
	}
	return out, nil
}

// SetMemberRole changes the role of a membership of the family. Admin only.
func (s *Service) SetMemberRole(ctx context.Context, userID, familyID, membershipID string, role Role) (*Membership, error) {
	if _, err := s.RequireAdmin(ctx, userID, familyID); err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, apperr.Invalid("role", "role must be admin or member")
	}

	res := s.DB.WithContext(ctx).Model(&Membership{}).
		Where("id = ? AND family_id = ?", membershipID, familyID).
		Update("role", role)
	if res.Error != nil {
		return nil, fmt.Errorf("update role: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, apperr.NotFound("membership")
	}

	var m Membership
	if err := s.DB.WithContext(ctx).Where("id = ?", membershipID).First(&m).Error; err != nil {
		return nil, fmt.Errorf("load membership: %w", err)
	}
	return &m, nil
}

// RegenerateInviteCode invalidates the current code. Admin only.
func (s *Service) RegenerateInviteCode(ctx context.Context, userID, familyID string) (*Family, error) {
	if _, err := s.RequireAdmin(ctx, userID, familyID); err != nil {
		return nil, err
	}
	code, err := NewInviteCode()
	if err != nil {
		return nil, err
	}
	if err := s.DB.WithContext(ctx).Model(&Family{}).Where("id = ?", familyID).Update("invite_code", code).Error; err != nil {
		return nil, fmt.Errorf("update invite code: %w", err)
	}
	return s.load(ctx, s.DB, familyID)
}

// SendInvite e-mails the family's invite code. Admin only.
func (s *Service) SendInvite(ctx context.Context, userID, familyID, email string) error {
	if _, err := s.RequireAdmin(ctx, userID, familyID); err != nil {
		return err
	}
	email = strings.TrimSpace(strings.ToLower(email))
	if !strings.Contains(email, "@") {
		return apperr.Invalid("email", "invalid email address")
	}
	if s.Mail == nil {
		return ErrMailDisabled
	}

	f, err := s.load(ctx, s.DB, familyID)
	if err != nil {
		return err
	}
	var inviter auth.User
	if err := s.DB.WithContext(ctx).Select("name").Where("id = ?", userID).First(&inviter).Error; err != nil {
		return fmt.Errorf("load inviter: %w", err)
	}

	return s.Mail.SendInvite(ctx, mail.Invite{
		To:          email,
		FamilyName:  f.Name,
		InviterName: inviter.Name,
		Code:        f.InviteCode,
	})
}

// UserFamilyIDs lists the ids of every family the user is a member of.
func (s *Service) UserFamilyIDs(ctx context.Context, userID string) ([]string, error) {
	ids := []string{}
	err := s.DB.WithContext(ctx).Model(&Membership{}).
		Where("user_id = ?", userID).
		Order("joined_at asc").
		Pluck("family_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("list family ids: %w", err)
	}
	return ids, nil
}

// Role reports the user's role in the family; ok is false for non-members.
func (s *Service) Role(ctx context.Context, userID, familyID string) (Role, bool, error) {
	var m Membership
	err := s.DB.WithContext(ctx).
		Where("user_id = ? AND family_id = ?", userID, familyID).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("load membership: %w", err)
	}
	return m.Role, true, nil
}

func (s *Service) RequireMember(ctx context.Context, userID, familyID string) (Role, error) {
	role, ok, err := s.Role(ctx, userID, familyID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", apperr.Forbidden("not a member")
	}
	return role, nil
}

func (s *Service) RequireAdmin(ctx context.Context, userID, familyID string) (Role, error) {
	role, ok, err := s.Role(ctx, userID, familyID)
	if err != nil {
		return "", err
	}
	if !ok || role != RoleAdmin {
		return "", apperr.Forbidden("admin access required")
	}
	return role, nil
}

// Scope resolves the trusted set of family ids for aggregation. A requested family
// the user belongs to narrows the scope to that family; otherwise (no request, or a
// family the user is not in) every family of the user is in scope. An empty scope
// means the user has no family.
func (s *Service) Scope(ctx context.Context, userID, requested string) ([]string, error) {
	ids, err := s.UserFamilyIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	requested = strings.TrimSpace(requested)
	if requested != "" {
		for _, id := range ids {
			if id == requested {
				return []string{id}, nil
			}
		}
	}
	return ids, nil
}

func (s *Service) load(ctx context.Context, db *gorm.DB, familyID string) (*Family, error) {
	var f Family
	if err := db.WithContext(ctx).Where("id = ?", familyID).First(&f).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("family")
		}
		return nil, fmt.Errorf("load family: %w", err)
	}
	return &f, nil
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
