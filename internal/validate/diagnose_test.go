package validate

import (
	"strings"
	"testing"
)

func TestDiagnose_MatchesKnownSymptoms(t *testing.T) {
	cases := []struct {
		symptom   string
		wantInFix string
	}{
		{"/data/sources/bat/urls.json does not exist", "stage actually ran"},
		{"urls.json line 3 is not valid JSON", "truncated write"},
		{"urls.json \"urls\" has only 12 items, need at least 50", "pagination"},
		{"only 40 pages scraped for 80 discovered urls", "rate limiting"},
		{"3 of 20 builds have no title", "selectors"},
		{"not found: source \"source:ghost\"", "sync_ralph_sources"},
	}
	for _, c := range cases {
		matches := Diagnose(c.symptom)
		if len(matches) == 0 {
			t.Errorf("Diagnose(%q) matched nothing", c.symptom)
			continue
		}
		found := false
		for _, m := range matches {
			if strings.Contains(m.Suggestion, c.wantInFix) {
				found = true
			}
		}
		if !found {
			t.Errorf("Diagnose(%q) = %+v, want a suggestion mentioning %q", c.symptom, matches, c.wantInFix)
		}
	}
}

func TestDiagnose_CaseInsensitive(t *testing.T) {
	if len(Diagnose("FILE DOES NOT EXIST")) == 0 {
		t.Error("matching should be case-insensitive")
	}
}

func TestDiagnose_UnknownSymptom(t *testing.T) {
	if matches := Diagnose("segfault in kernel driver"); len(matches) != 0 {
		t.Errorf("unrelated symptom matched %+v", matches)
	}
}
