// Package mail sends family invite codes by e-mail.
package mail

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// Invite is one invite-code e-mail.
type Invite struct {
	To          string
	FamilyName  string
	InviterName string
	Code        string
}

type Sender interface {
	SendInvite(ctx context.Context, in Invite) error
}

// Compose renders the subject and plain-text body of an invite.
func Compose(in Invite, appBaseURL string) (subject, body string) {
	subject = fmt.Sprintf("%s invited you to %s on Moi Ledger", in.InviterName, in.FamilyName)

	joinURL := strings.TrimRight(appBaseURL, "/") + "/dashboard/family?code=" + url.QueryEscape(in.Code)

	var b strings.Builder
	fmt.Fprintf(&b, "Hi,\n\n%s has invited you to join the family %q on Moi Ledger.\n\n", in.InviterName, in.FamilyName)
	fmt.Fprintf(&b, "Your invite code: %s\n\n", in.Code)
	fmt.Fprintf(&b, "Join here: %s\n", joinURL)
	return subject, b.String()
}
