// Package contract models the Pact V3 document that the consumer test run
// produces and the provider verification replays. The field names are the
// wire format shared with the Pact tooling on both sides and must not be
// renamed.
package contract

import (
	"encoding/json"
	"fmt"
	"os"
)

// Contract is a Pact V3 document: an ordered list of interactions tagged
// with the consumer and provider names.
type Contract struct {
	Consumer     Pacticipant   `json:"consumer"`
	Provider     Pacticipant   `json:"provider"`
	Interactions []Interaction `json:"interactions"`
	Metadata     Metadata      `json:"metadata"`
}

// Pacticipant names one side of the contract.
type Pacticipant struct {
	Name string `json:"name"`
}

// Metadata carries the pact specification version.
type Metadata struct {
	PactSpecification SpecVersion `json:"pactSpecification"`
}

// SpecVersion is the pact format version, e.g. "3.0.0".
type SpecVersion struct {
	Version string `json:"version"`
}

// Interaction is one expected request/response exchange.
type Interaction struct {
	Description   string   `json:"description"`
	ProviderState string   `json:"providerState,omitempty"`
	Request       Request  `json:"request"`
	Response      Response `json:"response"`
}

// Request describes the consumer's expected request.
type Request struct {
	Method        string            `json:"method"`
	Path          string            `json:"path"`
	Headers       map[string]string `json:"headers,omitempty"`
	Body          json.RawMessage   `json:"body,omitempty"`
	MatchingRules *MatchingRules    `json:"matchingRules,omitempty"`
}

// Response describes the provider's expected response.
type Response struct {
	Status        int               `json:"status"`
	Headers       map[string]string `json:"headers,omitempty"`
	Body          json.RawMessage   `json:"body,omitempty"`
	MatchingRules *MatchingRules    `json:"matchingRules,omitempty"`
}

// MatchingRules holds the V3 matcher tree, keyed by body path
// ("$.glucose_readings", "$.warnings[*]", ...).
type MatchingRules struct {
	Body map[string]RuleSet `json:"body,omitempty"`
}

// RuleSet is the list of matchers applied at one path.
type RuleSet struct {
	Matchers []Rule `json:"matchers"`
	Combine  string `json:"combine,omitempty"`
}

// Rule is a single matcher. The recognized vocabulary is: literal equality
// (no rule present), {"match":"type"}, and {"match":"type","min":N} for
// array-of matching with a minimum length.
type Rule struct {
	Match string `json:"match"`
	Min   int    `json:"min,omitempty"`
}

// Load reads and validates a pact file.
func Load(path string) (*Contract, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var c Contract
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("parse pact %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pact %s: %w", path, err)
	}
	return &c, nil
}

// Validate checks the structural invariants the verifier depends on.
func (c *Contract) Validate() error {
	if c.Consumer.Name == "" || c.Provider.Name == "" {
		return fmt.Errorf("missing consumer or provider name")
	}
	if len(c.Interactions) == 0 {
		return fmt.Errorf("no interactions")
	}
	for i, in := range c.Interactions {
		if in.Description == "" {
			return fmt.Errorf("interaction %d has no description", i)
		}
		if in.Request.Method == "" || in.Request.Path == "" {
			return fmt.Errorf("interaction %q has incomplete request", in.Description)
		}
		if in.Response.Status == 0 {
			return fmt.Errorf("interaction %q has no response status", in.Description)
		}
	}
	return nil
}

// MinArrayLength returns the minimum-length constraint attached to the
// given body path in the interaction's response rules, or 0 when none.
func (in *Interaction) MinArrayLength(bodyPath string) int {
	if in.Response.MatchingRules == nil {
		return 0
	}
	rs, ok := in.Response.MatchingRules.Body[bodyPath]
	if !ok {
		return 0
	}
	for _, r := range rs.Matchers {
		if r.Min > 0 {
			return r.Min
		}
	}
	return 0
}

// RequestMinArrayLength is MinArrayLength for the request-side rules.
func (in *Interaction) RequestMinArrayLength(bodyPath string) int {
	if in.Request.MatchingRules == nil {
		return 0
	}
	rs, ok := in.Request.MatchingRules.Body[bodyPath]
	if !ok {
		return 0
	}
	for _, r := range rs.Matchers {
		if r.Min > 0 {
			return r.Min
		}
	}
	return 0
}
