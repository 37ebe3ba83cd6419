package main

import "testing"

func TestParseAllowedUserIDs(t *testing.T) {
	got, err := parseAllowedUserIDs([]string{"123", " 456 ,789", ""})
	if err != nil {
		t.Fatalf("parseAllowedUserIDs: %v", err)
	}
	for _, id := range []int64{123, 456, 789} {
		if !got[id] {
			t.Errorf("id %d missing from allow-list", id)
		}
	}
	if len(got) != 3 {
		t.Errorf("allow-list size = %d, want 3", len(got))
	}

	if _, err := parseAllowedUserIDs([]string{"alice"}); err == nil {
		t.Error("expected error for non-numeric id")
	}
}

func TestParseAllowedUserIDsEmptyMeansOpen(t *testing.T) {
	got, err := parseAllowedUserIDs(nil)
	if err != nil {
		t.Fatalf("parseAllowedUserIDs: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("allow-list size = %d, want 0", len(got))
	}
}
