package domain

import (
	"testing"

	"github.com/google/uuid"
)

func TestActorLabel(t *testing.T) {
	tests := []struct {
		name  string
		actor Actor
		want  string
	}{
		{name: "name", actor: Actor{Role: RolePI, Name: "Dana Whitfield", Email: "dana@site.org"}, want: "PI (Dana Whitfield)"},
		{name: "email fallback", actor: Actor{Role: RoleSubI, Email: "sam@site.org"}, want: "Sub-I (sam@site.org)"},
		{name: "role only", actor: Actor{Role: RoleOAM, UserID: uuid.New()}, want: "OAM"},
		{name: "system", actor: SystemActor(), want: "system"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.actor.Label(); got != tt.want {
				t.Errorf("Label() = %q, want %q", got, tt.want)
			}
			if err := ValidateActorLabel(tt.actor.Label()); err != nil {
				t.Errorf("label rejected: %v", err)
			}
		})
	}
}

func TestValidateActorLabelRejectsRawIDs(t *testing.T) {
	for _, label := range []string{"", "  ", "12345", uuid.NewString()} {
		if err := ValidateActorLabel(label); err == nil {
			t.Errorf("expected %q to be rejected", label)
		}
	}
}

func TestCanWrite(t *testing.T) {
	coordinator := Actor{Role: RoleCoordinator, Sites: []string{"loc-42"}}
	if !coordinator.CanWrite("loc-42") {
		t.Error("coordinator should write to granted site")
	}
	if coordinator.CanWrite("loc-99") {
		t.Error("coordinator should not write to other sites")
	}
	if coordinator.CanWrite("") {
		t.Error("only administrators work the unclaimed pool")
	}

	viewer := Actor{Role: RoleViewer, Sites: []string{"loc-42"}}
	if viewer.CanWrite("loc-42") {
		t.Error("viewer is read only")
	}
	if !viewer.CanRead("loc-42") || viewer.CanRead("loc-99") {
		t.Error("viewer reads member sites only")
	}

	admin := Actor{Role: RoleAdmin}
	if !admin.CanWrite("") || !admin.CanWrite("loc-99") {
		t.Error("admin writes everywhere")
	}
}

func TestPrimaryRole(t *testing.T) {
	if got := PrimaryRole([]string{"coordinator", "PI"}); got != RolePI {
		t.Errorf("PrimaryRole = %q, want pi", got)
	}
	if got := PrimaryRole(nil); got != RoleViewer {
		t.Errorf("PrimaryRole(nil) = %q, want viewer", got)
	}
}
