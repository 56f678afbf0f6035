// Package replay verifies a contract against a live provider by replaying
// every interaction and checking the actual responses against the
// contract's matcher trees.
package replay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/drpact/pactgen/internal/contract"
)

// InteractionResult is the outcome of replaying one interaction.
type InteractionResult struct {
	Description string
	Passed      bool
	Diagnostic  string
}

// Report is the outcome of a full replay run.
type Report struct {
	Results []InteractionResult
}

// Passed reports whether every interaction verified.
func (r *Report) Passed() bool {
	for _, res := range r.Results {
		if !res.Passed {
			return false
		}
	}
	return len(r.Results) > 0
}

// Verifier replays contract interactions over HTTP.
type Verifier struct {
	// ProviderURL is the base address of the running provider.
	ProviderURL string

	// RequestTimeout bounds each replayed request.
	RequestTimeout time.Duration

	// HTTPClient may be overridden in tests.
	HTTPClient *http.Client
}

func (v *Verifier) client() *http.Client {
	if v.HTTPClient != nil {
		return v.HTTPClient
	}
	return http.DefaultClient
}

// HealthCheck probes the provider before replay so a down provider is
// reported as such instead of as a wall of interaction failures.
func (v *Verifier) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, v.timeout())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSuffix(v.ProviderURL, "/")+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := v.client().Do(req)
	if err != nil {
		return fmt.Errorf("provider not reachable at %s: %w", v.ProviderURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("provider unhealthy: status %d from /health", resp.StatusCode)
	}
	return nil
}

// Verify replays every interaction in order.
func (v *Verifier) Verify(ctx context.Context, c *contract.Contract) (*Report, error) {
	report := &Report{}
	for _, in := range c.Interactions {
		passed, diag := v.verifyInteraction(ctx, &in)
		report.Results = append(report.Results, InteractionResult{
			Description: in.Description,
			Passed:      passed,
			Diagnostic:  diag,
		})
	}
	return report, nil
}

func (v *Verifier) timeout() time.Duration {
	if v.RequestTimeout > 0 {
		return v.RequestTimeout
	}
	return 5 * time.Second
}

func (v *Verifier) verifyInteraction(ctx context.Context, in *contract.Interaction) (bool, string) {
	ctx, cancel := context.WithTimeout(ctx, v.timeout())
	defer cancel()

	url := strings.TrimSuffix(v.ProviderURL, "/") + in.Request.Path

	var body io.Reader
	if len(in.Request.Body) > 0 {
		body = bytes.NewReader(in.Request.Body)
	}

	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(in.Request.Method), url, body)
	if err != nil {
		return false, err.Error()
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := v.client().Do(req)
	if err != nil {
		return false, "could not connect to provider: " + err.Error()
	}
	defer resp.Body.Close()

	if resp.StatusCode != in.Response.Status {
		return false, fmt.Sprintf("expected status %d, got %d", in.Response.Status, resp.StatusCode)
	}

	if len(in.Response.Body) == 0 {
		return true, ""
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, "read response: " + err.Error()
	}

	var actual any
	if err := json.Unmarshal(respBody, &actual); err != nil {
		return false, "provider returned non-JSON body: " + err.Error()
	}

	var expected any
	if err := json.Unmarshal(in.Response.Body, &expected); err != nil {
		return false, "contract has malformed expected body: " + err.Error()
	}

	var rules map[string]contract.RuleSet
	if in.Response.MatchingRules != nil {
		rules = in.Response.MatchingRules.Body
	}

	m := &matcher{rules: rules}
	m.match("$", expected, actual)
	if len(m.failures) == 0 {
		return true, ""
	}
	return false, buildDiagnostic(in.Request.Path, m.failures, expected, actual)
}

// buildDiagnostic renders field-level mismatch detail, including a
// similar-field suggestion for each missing field so a renamed provider
// field is called out by name on both sides.
func buildDiagnostic(endpoint string, failures []failure, expected, actual any) string {
	var b strings.Builder
	fmt.Fprintf(&b, "endpoint %s\n", endpoint)

	actualFields := topLevelFields(actual)
	for _, f := range failures {
		fmt.Fprintf(&b, "  %s: %s\n", f.path, f.reason)
		if f.missingField != "" {
			if similar := similarField(f.missingField, actualFields); similar != "" {
				fmt.Fprintf(&b, "    provider returns %q where the consumer expects %q\n", similar, f.missingField)
			}
		}
	}

	if len(actualFields) > 0 {
		fmt.Fprintf(&b, "  actual fields: %s\n", strings.Join(actualFields, ", "))
	}
	return strings.TrimRight(b.String(), "\n")
}

func topLevelFields(v any) []string {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	fields := make([]string, 0, len(obj))
	for k := range obj {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	return fields
}

// similarField finds the closest actual field name by word overlap, for
// typo and rename detection.
func similarField(target string, candidates []string) string {
	targetWords := fieldWords(target)

	best, bestScore := "", 0
	for _, c := range candidates {
		score := 0
		for w := range fieldWords(c) {
			if _, ok := targetWords[w]; ok {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = c, score
		}
	}
	return best
}

func fieldWords(name string) map[string]struct{} {
	words := make(map[string]struct{})
	for _, w := range strings.Split(strings.ToLower(name), "_") {
		if w != "" {
			words[w] = struct{}{}
		}
	}
	return words
}
