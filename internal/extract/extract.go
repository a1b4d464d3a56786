// Package extract decides whether finalized model output should be
// captured as an artifact.
//
// The decision is a pure function over the complete message content; it
// never sees partial streaming buffers. The default heuristic is
// deliberately permissive (fenced code block or the word "artifact")
// and is a policy knob, not a correctness property.
package extract

import (
	"strings"
	"time"
)

// Defaults for the extraction heuristic.
const (
	// DefaultFenceMarker is the delimiter sequence that marks literal
	// code in plain text.
	DefaultFenceMarker = "```"

	// DefaultKeyword triggers extraction on a case-insensitive match.
	DefaultKeyword = "artifact"

	// DefaultType tags drafts whose type cannot be determined.
	DefaultType = "code"
)

// Draft is a proposed artifact produced from finalized content.
type Draft struct {
	Name    string
	Type    string
	Content string
}

// Policy holds the extraction knobs. The zero value uses the defaults;
// implementations may tune the knobs but the default behavior is fixed.
type Policy struct {
	// FenceMarker overrides DefaultFenceMarker when non-empty.
	FenceMarker string

	// Keyword overrides DefaultKeyword when non-empty.
	Keyword string

	// Type overrides DefaultType when non-empty.
	Type string

	// Now supplies the clock for default names. nil = time.Now.
	Now func() time.Time
}

// Evaluate inspects finalized content and returns a draft when the
// content is artifact-worthy. Content is eligible if it contains a
// fenced code block marker or the keyword, case-insensitively.
func (p Policy) Evaluate(content string) (Draft, bool) {
	fence := p.FenceMarker
	if fence == "" {
		fence = DefaultFenceMarker
	}
	keyword := p.Keyword
	if keyword == "" {
		keyword = DefaultKeyword
	}

	eligible := strings.Contains(content, fence) ||
		strings.Contains(strings.ToLower(content), strings.ToLower(keyword))
	if !eligible {
		return Draft{}, false
	}

	return Draft{
		Name:    p.defaultName(),
		Type:    p.artifactType(),
		Content: content,
	}, true
}

// defaultName derives a human-readable name from the creation time.
// Uniqueness is by convention only; duplicate names are legal.
func (p Policy) defaultName() string {
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	return "Artifact " + now().Format("2006-01-02 15:04:05")
}

func (p Policy) artifactType() string {
	if p.Type != "" {
		return p.Type
	}
	return DefaultType
}
