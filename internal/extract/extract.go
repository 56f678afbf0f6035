// Package extract isolates the generated test source from a raw model
// response. It is a best-effort syntactic boundary: fence matching only,
// no parsing of the extracted code.
package extract

import (
	"fmt"
	"regexp"
	"strings"
)

// ErrNoCodeBlock reports a response with no candidate code block.
type ErrNoCodeBlock struct{}

func (ErrNoCodeBlock) Error() string {
	return "no fenced code block found in model response"
}

// ErrAmbiguousBlocks reports a response with more than one candidate block.
type ErrAmbiguousBlocks struct {
	Count int
}

func (e ErrAmbiguousBlocks) Error() string {
	return fmt.Sprintf("model response contains %d candidate code blocks, expected exactly one", e.Count)
}

// Artifact is a successfully extracted test source.
type Artifact struct {
	// Source is the trimmed interior of the code block, otherwise verbatim.
	Source string

	// LanguageTag is the fence tag the block carried; empty for bare fences.
	LanguageTag string
}

var fencePattern = regexp.MustCompile("(?s)```([a-zA-Z0-9_+-]*)[ \t]*\n(.*?)```")

// Extractor locates exactly one fenced code block of an expected language.
type Extractor struct {
	// LanguageTags are the fence tags accepted as candidates. Untagged
	// fences are always accepted.
	LanguageTags []string
}

// Extract returns the single candidate block's trimmed interior. Zero
// candidates yield ErrNoCodeBlock, two or more ErrAmbiguousBlocks; no
// disambiguation heuristic is applied.
func (e *Extractor) Extract(rawText string) (*Artifact, error) {
	matches := fencePattern.FindAllStringSubmatch(rawText, -1)

	var candidates []*Artifact
	for _, m := range matches {
		tag, body := m[1], m[2]
		if tag != "" && !e.acceptsTag(tag) {
			continue
		}
		candidates = append(candidates, &Artifact{
			Source:      strings.TrimSpace(body),
			LanguageTag: tag,
		})
	}

	switch len(candidates) {
	case 0:
		return nil, ErrNoCodeBlock{}
	case 1:
		if candidates[0].Source == "" {
			return nil, ErrNoCodeBlock{}
		}
		return candidates[0], nil
	default:
		return nil, ErrAmbiguousBlocks{Count: len(candidates)}
	}
}

func (e *Extractor) acceptsTag(tag string) bool {
	for _, want := range e.LanguageTags {
		if strings.EqualFold(tag, want) {
			return true
		}
	}
	return false
}
