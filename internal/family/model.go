package family

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleMember
}

// Family is the tenancy boundary: every event and transaction belongs to one family.
type Family struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	Name        string    `gorm:"not null" json:"name"`
	Description *string   `json:"description"`
	InviteCode  string    `gorm:"uniqueIndex;not null" json:"inviteCode"`
	CreatedBy   string    `gorm:"size:36;not null" json:"createdBy"`
	CreatedAt   time.Time `gorm:"not null" json:"createdAt"`
}

func (f *Family) BeforeCreate(*gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	return nil
}

type Membership struct {
	ID       string    `gorm:"primaryKey;size:36" json:"id"`
	UserID   string    `gorm:"uniqueIndex:unique_user_family;size:36;not null" json:"userId"`
	FamilyID string    `gorm:"uniqueIndex:unique_user_family;index;size:36;not null" json:"familyId"`
	Role     Role      `gorm:"type:text;not null;default:'member'" json:"role"`
	JoinedAt time.Time `gorm:"not null;autoCreateTime" json:"joinedAt"`
}

func (m *Membership) BeforeCreate(*gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

// WithRole is a family as seen by one of its members.
type WithRole struct {
	Family
	Role Role `json:"role"`
}

type MemberUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type Member struct {
	Membership
	User MemberUser `json:"user"`
}
