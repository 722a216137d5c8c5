// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package classify drives the external visual-classification service through
// a bounded, retry-tolerant worker pool.
package classify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/pdiddy/figure-engine/pkg/types"
)

// Backend abstracts the visual-classification API so tests can supply a
// mock. One call classifies one rendered figure with its caption.
type Backend interface {
	Classify(ctx context.Context, imagePNG []byte, caption string) (types.Verdict, error)
}

// TransientError marks a failure worth retrying: timeout, rate limit, or a
// server-side error.
type TransientError struct {
	Status int
	Msg    string
}

func (e *TransientError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("transient classification failure (HTTP %d): %s", e.Status, e.Msg)
	}
	return "transient classification failure: " + e.Msg
}

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// instruction is the fixed classification prompt. The response contract is a
// bare JSON object so ParseVerdict can stay schema-driven.
const instruction = `Analyze this figure from a scientific paper. Decide whether it explains HOW a method works: a system architecture, an algorithm pipeline, or a flowchart of the proposed approach.

Reject results tables, bar charts, line graphs, confusion matrices, qualitative example grids, and generic illustrations.

Return a valid JSON object (no markdown formatting) with these fields:
{
  "is_methodology": boolean,
  "style_tags": ["tag1", "tag2"],
  "logic_summary": "one paragraph describing the system flow the figure shows"
}

The caption of the figure is:
`

// Prompt returns the full instruction for one candidate's caption.
func Prompt(caption string) string {
	return instruction + caption
}

// rawVerdict is the wire shape of the classifier's JSON reply.
type rawVerdict struct {
	IsMethodology bool     `json:"is_methodology"`
	StyleTags     []string `json:"style_tags"`
	LogicSummary  string   `json:"logic_summary"`
}

// ParseVerdict converts the classifier's free-form reply into a Verdict.
// Replies wrapped in markdown code fences are unwrapped first. A malformed
// payload is treated as a reject with an empty tag set rather than an error,
// so one bad response cannot poison the run.
func ParseVerdict(text string) types.Verdict {
	cleaned := stripCodeFence(strings.TrimSpace(text))

	var raw rawVerdict
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return types.Verdict{Decision: types.DecisionReject}
	}

	v := types.Verdict{
		Decision: types.DecisionReject,
		Tags:     raw.StyleTags,
		Summary:  raw.LogicSummary,
	}
	if raw.IsMethodology {
		v.Decision = types.DecisionAccept
	}
	return v
}

// stripCodeFence removes a surrounding markdown code fence, with or without
// a language marker.
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
