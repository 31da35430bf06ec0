package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestContext_HasOrg(t *testing.T) {
	if (Context{}).HasOrg() {
		t.Fatalf("expected no org without OrgID")
	}
	orgID := uuid.New()
	ctx := Context{OrgID: &orgID}
	if !ctx.HasOrg() {
		t.Fatalf("expected org when OrgID is set")
	}
}

func TestContext_InGroup(t *testing.T) {
	ctx := Context{Groups: []string{"admins", "devs"}}
	if !ctx.InGroup("admins") {
		t.Fatalf("expected membership in admins")
	}
	if ctx.InGroup("nobody") {
		t.Fatalf("did not expect membership in nobody")
	}
	if (Context{}).InGroup("") {
		t.Fatalf("empty group should never match")
	}
}

func TestContext_Fields(t *testing.T) {
	exp := time.Now().Add(time.Hour)
	ctx := Context{Subject: "sub-1", RawToken: "tok", ExpiresAt: exp}
	if ctx.Subject != "sub-1" || ctx.RawToken != "tok" || !ctx.ExpiresAt.Equal(exp) {
		t.Fatalf("unexpected context: %+v", ctx)
	}
}
