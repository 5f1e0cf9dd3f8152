package tui

import "testing"

func TestFilterPickerItems_EmptyQueryKeepsOrder(t *testing.T) {
	items := []pickerItem{
		{ID: "a", Title: "fix login bug"},
		{ID: "b", Title: "refactor store"},
	}

	got := filterPickerItems(items, "  ")
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
		t.Fatalf("empty query should keep original order, got %v", got)
	}
}

func TestFilterPickerItems_FuzzyMatch(t *testing.T) {
	items := []pickerItem{
		{ID: "a", Title: "fix login bug", Subtitle: "/home/dev/app"},
		{ID: "b", Title: "refactor store", Subtitle: "/home/dev/svc"},
		{ID: "c", Title: "write docs", Subtitle: "/home/dev/docs"},
	}

	got := filterPickerItems(items, "refstore")
	if len(got) != 1 || got[0].ID != "b" {
		t.Fatalf("expected only the store session to match, got %v", got)
	}
}

func TestFilterPickerItems_MatchesSubtitle(t *testing.T) {
	items := []pickerItem{
		{ID: "a", Title: "new chat", Subtitle: "/work/payments · 10 lines"},
		{ID: "b", Title: "new chat", Subtitle: "/work/billing · 3 lines"},
	}

	got := filterPickerItems(items, "payments")
	if len(got) != 1 || got[0].ID != "a" {
		t.Fatalf("expected subtitle match, got %v", got)
	}
}

func TestFilterPickerItems_NoMatch(t *testing.T) {
	items := []pickerItem{{ID: "a", Title: "fix login bug"}}
	if got := filterPickerItems(items, "zzzzzz"); len(got) != 0 {
		t.Fatalf("expected no matches, got %v", got)
	}
}
