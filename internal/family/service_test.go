package family

import (
	"context"
	"errors"
	"io"
	"sort"
	"testing"

	"moiledger/internal/apperr"
	"moiledger/internal/auth"
	"moiledger/internal/db"
	"moiledger/internal/mail"
	"moiledger/internal/notify"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type fakeMail struct {
	sent []mail.Invite
}

func (f *fakeMail) SendInvite(_ context.Context, in mail.Invite) error {
	f.sent = append(f.sent, in)
	return nil
}

func setup(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	gdb, err := db.Connect("sqlite", ":memory:", nil)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := gdb.AutoMigrate(&auth.User{}, &Family{}, &Membership{}, &notify.Notification{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	log := logrus.New()
	log.SetOutput(io.Discard)
	return &Service{
		DB:     gdb,
		Notify: &notify.Service{DB: gdb, Log: log},
		Log:    log,
	}, gdb
}

func createUser(t *testing.T, gdb *gorm.DB, name string) string {
	t.Helper()
	u := auth.User{Name: name, Email: name + "@example.com", PasswordHash: "x"}
	if err := gdb.Create(&u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u.ID
}

func TestCreateMakesCreatorAdmin(t *testing.T) {
	svc, gdb := setup(t)
	ctx := context.Background()
	uid := createUser(t, gdb, "ravi")

	f, err := svc.Create(ctx, uid, CreateInput{Name: "  Kumar Family "})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if f.Name != "Kumar Family" {
		t.Errorf("Name = %q", f.Name)
	}
	if len(f.InviteCode) != inviteCodeLen {
		t.Errorf("InviteCode = %q", f.InviteCode)
	}

	role, ok, err := svc.Role(ctx, uid, f.ID)
	if err != nil || !ok || role != RoleAdmin {
		t.Fatalf("Role() = %q, %v, %v; want admin", role, ok, err)
	}

	if _, err := svc.Create(ctx, uid, CreateInput{Name: "   "}); err == nil {
		t.Fatal("expected validation error for blank name")
	} else if _, ok := apperr.IsValidation(err); !ok {
		t.Fatalf("error = %v, want ValidationError", err)
	}
}

func TestJoinByInviteCode(t *testing.T) {
	svc, gdb := setup(t)
	ctx := context.Background()
	owner := createUser(t, gdb, "ravi")
	joiner := createUser(t, gdb, "meena")

	f, err := svc.Create(ctx, owner, CreateInput{Name: "Kumar Family"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if _, err := svc.Join(ctx, joiner, "nope"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("Join(bad code) error = %v, want ErrNotFound", err)
	}

	joined, err := svc.Join(ctx, joiner, f.InviteCode)
	if err != nil {
		t.Fatalf("Join() error = %v", err)
	}
	if joined.ID != f.ID {
		t.Errorf("joined %s, want %s", joined.ID, f.ID)
	}
	role, _, _ := svc.Role(ctx, joiner, f.ID)
	if role != RoleMember {
		t.Errorf("role = %q, want member", role)
	}

	if _, err := svc.Join(ctx, joiner, f.InviteCode); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("second Join() error = %v, want ErrConflict", err)
	}

	ns, err := svc.Notify.List(ctx, owner)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(ns) != 1 || ns[0].Message != "meena joined Kumar Family" || ns[0].Type != notify.TypeFamilyInvite {
		t.Fatalf("owner notifications = %+v", ns)
	}
}

func TestScope(t *testing.T) {
	svc, gdb := setup(t)
	ctx := context.Background()
	uid := createUser(t, gdb, "ravi")
	other := createUser(t, gdb, "arun")

	a, _ := svc.Create(ctx, uid, CreateInput{Name: "A"})
	b, _ := svc.Create(ctx, uid, CreateInput{Name: "B"})
	foreign, _ := svc.Create(ctx, other, CreateInput{Name: "C"})

	tests := []struct {
		name      string
		userID    string
		requested string
		want      []string
	}{
		{"all families", uid, "", []string{a.ID, b.ID}},
		{"one family", uid, b.ID, []string{b.ID}},
		{"foreign family falls back to all", uid, foreign.ID, []string{a.ID, b.ID}},
		{"no membership", createUser(t, gdb, "nobody"), "", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.Scope(ctx, tt.userID, tt.requested)
			if err != nil {
				t.Fatalf("Scope() error = %v", err)
			}
			sort.Strings(got)
			sort.Strings(tt.want)
			if len(got) != len(tt.want) {
				t.Fatalf("Scope() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("Scope() = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestAdminOnlyOperations(t *testing.T) {
	svc, gdb := setup(t)
	ctx := context.Background()
	owner := createUser(t, gdb, "ravi")
	member := createUser(t, gdb, "meena")
	outsider := createUser(t, gdb, "arun")

	f, _ := svc.Create(ctx, owner, CreateInput{Name: "Kumar Family"})
	if _, err := svc.Join(ctx, member, f.InviteCode); err != nil {
		t.Fatalf("Join() error = %v", err)
	}

	newName := "Renamed"
	if _, err := svc.Update(ctx, member, f.ID, UpdateInput{Name: &newName}); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("member Update() error = %v, want ErrForbidden", err)
	}
	if _, err := svc.Get(ctx, outsider, f.ID); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("outsider Get() error = %v, want ErrForbidden", err)
	}

	updated, err := svc.Update(ctx, owner, f.ID, UpdateInput{Name: &newName})
	if err != nil || updated.Name != "Renamed" {
		t.Fatalf("admin Update() = %+v, %v", updated, err)
	}

	members, err := svc.Members(ctx, member, f.ID)
	if err != nil {
		t.Fatalf("Members() error = %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("Members() = %d rows, want 2", len(members))
	}
	var memberRow Member
	for _, m := range members {
		if m.UserID == member {
			memberRow = m
		}
	}
	if memberRow.User.Name != "meena" {
		t.Errorf("member user = %+v", memberRow.User)
	}

	if _, err := svc.SetMemberRole(ctx, owner, f.ID, memberRow.ID, Role("owner")); err == nil {
		t.Fatal("expected validation error for unknown role")
	}
	m, err := svc.SetMemberRole(ctx, owner, f.ID, memberRow.ID, RoleAdmin)
	if err != nil || m.Role != RoleAdmin {
		t.Fatalf("SetMemberRole() = %+v, %v", m, err)
	}

	before := updated.InviteCode
	regenerated, err := svc.RegenerateInviteCode(ctx, owner, f.ID)
	if err != nil {
		t.Fatalf("RegenerateInviteCode() error = %v", err)
	}
	if regenerated.InviteCode == before {
		t.Error("invite code did not change")
	}
}

func TestSendInvite(t *testing.T) {
	svc, gdb := setup(t)
	ctx := context.Background()
	owner := createUser(t, gdb, "ravi")
	f, _ := svc.Create(ctx, owner, CreateInput{Name: "Kumar Family"})

	if err := svc.SendInvite(ctx, owner, f.ID, "a@b.com"); !errors.Is(err, ErrMailDisabled) {
		t.Fatalf("SendInvite() without mailer error = %v", err)
	}

	fm := &fakeMail{}
	svc.Mail = fm
	if err := svc.SendInvite(ctx, owner, f.ID, " Cousin@Example.com "); err != nil {
		t.Fatalf("SendInvite() error = %v", err)
	}
	if len(fm.sent) != 1 {
		t.Fatalf("sent %d mails, want 1", len(fm.sent))
	}
	got := fm.sent[0]
	if got.To != "cousin@example.com" || got.Code != f.InviteCode || got.InviterName != "ravi" {
		t.Errorf("invite = %+v", got)
	}
}

func TestNewInviteCodeAlphabet(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		code, err := NewInviteCode()
		if err != nil {
			t.Fatalf("NewInviteCode() error = %v", err)
		}
		if len(code) != inviteCodeLen {
			t.Fatalf("len(%q) = %d", code, len(code))
		}
		for _, r := range code {
			if !containsRune(inviteCodeAlphabet, r) {
				t.Fatalf("code %q contains %q", code, r)
			}
		}
		if seen[code] {
			t.Fatalf("duplicate code %q", code)
		}
		seen[code] = true
	}
}

func containsRune(s string, r rune) bool {
	for _, c := range s {
		if c == r {
			return true
		}
	}
	return false
}
