package validate

import "strings"

// Diagnosis is an advisory suggestion matched against a failure symptom.
// These come from a fixed rule table — they are hints for the operator, not
// conclusions.
type Diagnosis struct {
	Pattern    string `json:"pattern"`
	Cause      string `json:"cause"`
	Suggestion string `json:"suggestion"`
}

// diagnosisRules maps symptom substrings (lowercase) to likely causes and
// fixes, ordered from most to least specific.
var diagnosisRules = []Diagnosis{
	{
		Pattern:    "does not exist",
		Cause:      "expected artifact was never written",
		Suggestion: "check that the stage actually ran for this source and that its output path matches the source directory layout",
	},
	{
		Pattern:    "not valid json",
		Cause:      "the stage crashed mid-write or emitted non-JSON output",
		Suggestion: "re-run the stage; if it persists, inspect the file tail for a truncated write",
	},
	{
		Pattern:    "failed to parse",
		Cause:      "the stage crashed mid-write or emitted non-JSON output",
		Suggestion: "re-run the stage; if it persists, inspect the file tail for a truncated write",
	},
	{
		Pattern:    "has only",
		Cause:      "the stage produced fewer items than the configured minimum",
		Suggestion: "either the source genuinely has fewer items (lower the minimum in fylo.toml) or discovery stopped early (check pagination handling)",
	},
	{
		Pattern:    "pages scraped for",
		Cause:      "HTML scraping fell behind URL discovery",
		Suggestion: "re-run the html_scrape stage; look for rate limiting or timeouts in the scraper output",
	},
	{
		Pattern:    "missing title",
		Cause:      "field extraction failed on some pages",
		Suggestion: "the page layout likely changed; re-check the extraction selectors against a failing page",
	},
	{
		Pattern:    "no title",
		Cause:      "field extraction failed on some pages",
		Suggestion: "the page layout likely changed; re-check the extraction selectors against a failing page",
	},
	{
		Pattern:    "modifications",
		Cause:      "modification extraction found nothing",
		Suggestion: "verify the mod-list selector still matches; some sources list mods in free text that needs the fallback extractor",
	},
	{
		Pattern:    "not found",
		Cause:      "a graph entity referenced by the pipeline is missing",
		Suggestion: "run sync_ralph_sources before ingesting builds so source entities exist",
	},
}

// Diagnose matches a failure symptom against the rule table and returns the
// matching suggestions, most specific first. An empty result means the
// symptom is unrecognized — it does not mean nothing is wrong.
func Diagnose(symptom string) []Diagnosis {
	needle := strings.ToLower(symptom)
	var matches []Diagnosis
	for _, rule := range diagnosisRules {
		if strings.Contains(needle, rule.Pattern) {
			matches = append(matches, rule)
		}
	}
	return matches
}
