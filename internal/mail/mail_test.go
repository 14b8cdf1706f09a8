package mail

import (
	"strings"
	"testing"
)

func TestCompose(t *testing.T) {
	subject, body := Compose(Invite{
		To:          "cousin@example.com",
		FamilyName:  "Kumar Family",
		InviterName: "Ravi",
		Code:        "Ab3_x-9QzP",
	}, "https://moi.example.com/")

	if subject != "Ravi invited you to Kumar Family on Moi Ledger" {
		t.Errorf("subject = %q", subject)
	}
	for _, want := range []string{"Ab3_x-9QzP", "https://moi.example.com/dashboard/family?code=Ab3_x-9QzP", `"Kumar Family"`} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q:\n%s", want, body)
		}
	}
}
