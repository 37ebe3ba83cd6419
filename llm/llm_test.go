package llm

import "testing"

func TestRoleValid(t *testing.T) {
	if !RoleUser.Valid() {
		t.Errorf("expected user role to be valid")
	}
	if !RoleAssistant.Valid() {
		t.Errorf("expected assistant role to be valid")
	}
	for _, r := range []Role{"", "system", "Model", "USER"} {
		if r.Valid() {
			t.Errorf("expected role %q to be invalid", r)
		}
	}
}
