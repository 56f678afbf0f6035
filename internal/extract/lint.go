package extract

import (
	"fmt"
	"regexp"
	"strings"
)

// Models reliably hallucinate a handful of matcher APIs that do not exist
// in Pact V3. Lint rewrites the mechanical cases and reports the rest as
// warnings; it never fails the run, so the file is always written.

type rewriteRule struct {
	pattern *regexp.Regexp
	replace string
	note    string
}

var rewriteRules = []rewriteRule{
	{regexp.MustCompile(`MatchersV3\.integer\(\)`), "MatchersV3.number()", "integer() -> number()"},
	{regexp.MustCompile(`MatchersV3\.decimal\(\)`), "MatchersV3.number()", "decimal() -> number()"},
	{regexp.MustCompile(`MatchersV3\.float\(\)`), "MatchersV3.number()", "float() -> number()"},
	{regexp.MustCompile(`pactDir\s*:`), "dir:", "pactDir -> dir"},
	{regexp.MustCompile(`pactfileWriteMode\s*:`), "pactFilesWriteMode:", "pactfileWriteMode -> pactFilesWriteMode"},
	{regexp.MustCompile(`MatchersV3\.eachLike\s*\(\s*['"]['"]\s*\)`), "[]", "eachLike('') -> []"},
}

// toBeOneOf has no Jest equivalent; invert it into a toContain check.
var toBeOneOfPattern = regexp.MustCompile(`expect\(([^)]+)\)\.toBeOneOf\(\[([^\]]+)\]\)`)

// Patterns with no mechanical fix; their presence is surfaced as warnings.
var forbiddenPatterns = []struct {
	pattern *regexp.Regexp
	message string
}{
	{regexp.MustCompile(`MatchersV3\.oneOf\s*\(`), "MatchersV3.oneOf() does not exist in Pact V3"},
	{regexp.MustCompile(`MatchersV3\.anyOf\s*\(`), "MatchersV3.anyOf() does not exist in Pact V3"},
	{regexp.MustCompile(`MatchersV3\.enum\s*\(`), "MatchersV3.enum() does not exist in Pact V3"},
	{regexp.MustCompile(`MatchersV3\.uuid\s*\(`), "MatchersV3.uuid() does not exist in Pact V3"},
	{regexp.MustCompile(`MatchersV3\.regex\s*\(`), "MatchersV3.regex() does not exist; use MatchersV3.term()"},
	{regexp.MustCompile(`MatchersV3\.(date|timestamp|datetime|nullValue)\s*\(`), "nonexistent MatchersV3 matcher"},
	{regexp.MustCompile(`\.toBeAnyOf\s*\(`), "toBeAnyOf() does not exist in Jest"},
	{regexp.MustCompile(`\.toMatchOneOf\s*\(`), "toMatchOneOf() does not exist in Jest"},
}

// LintResult carries the rewritten source plus what was done and what
// remains suspicious.
type LintResult struct {
	Source   string
	Fixes    []string
	Warnings []string
}

// Lint applies the known mechanical rewrites to the generated source and
// collects warnings for hallucinated APIs it cannot fix.
func Lint(source string) *LintResult {
	res := &LintResult{Source: source}

	for _, r := range rewriteRules {
		if r.pattern.MatchString(res.Source) {
			res.Source = r.pattern.ReplaceAllString(res.Source, r.replace)
			res.Fixes = append(res.Fixes, r.note)
		}
	}

	if toBeOneOfPattern.MatchString(res.Source) {
		res.Source = toBeOneOfPattern.ReplaceAllString(res.Source, "expect([$2]).toContain($1)")
		res.Fixes = append(res.Fixes, "toBeOneOf -> toContain")
	}

	for _, f := range forbiddenPatterns {
		if f.pattern.MatchString(res.Source) {
			res.Warnings = append(res.Warnings, f.message)
		}
	}

	return res
}

// Summary renders the lint outcome for operator output.
func (r *LintResult) Summary() string {
	if len(r.Fixes) == 0 && len(r.Warnings) == 0 {
		return "no issues detected"
	}
	var b strings.Builder
	for _, f := range r.Fixes {
		fmt.Fprintf(&b, "fixed: %s\n", f)
	}
	for _, w := range r.Warnings {
		fmt.Fprintf(&b, "warning: %s\n", w)
	}
	return strings.TrimRight(b.String(), "\n")
}
