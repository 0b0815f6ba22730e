// ABOUTME: Dialogue data model: prompts, branches, and continuation actions
// ABOUTME: A dialogue is a tree of prompts interpreted by the Conversation engine

package dialogue

import (
	"context"
	"regexp"
	"strings"
)

// MatchFunc decides whether a reply selects a branch.
type MatchFunc func(text string) bool

// RespondFunc is a branch continuation. It may emit messages via the
// conversation and returns the next engine action.
type RespondFunc func(ctx context.Context, c *Conversation, reply string) Action

// Branch pairs a reply pattern with its continuation.
type Branch struct {
	Match   MatchFunc
	Respond RespondFunc
}

// Prompt is one question plus its candidate response branches. Branches are
// evaluated in declaration order; the first match wins. Default, when set,
// fires for replies no branch matched.
type Prompt struct {
	Question string
	Branches []Branch
	Default  RespondFunc
}

// Action is the closed set of things a continuation can ask the engine to do.
type Action struct {
	kind   actionKind
	nested *Prompt
}

type actionKind int

const (
	actionNext actionKind = iota
	actionRepeat
	actionEnd
	actionAsk
)

// Next advances past the current prompt. Popping the last prompt completes
// the dialogue; popping a nested prompt resumes its parent.
func Next() Action { return Action{kind: actionNext} }

// Repeat re-issues the current prompt. The following reply is evaluated
// against the same prompt's branches.
func Repeat() Action { return Action{kind: actionRepeat} }

// End terminates the whole dialogue, regardless of nesting depth.
func End() Action { return Action{kind: actionEnd} }

// Ask pushes a nested prompt. The current prompt pauses until the nested one
// reaches Next or End.
func Ask(p *Prompt) Action { return Action{kind: actionAsk, nested: p} }

// Affirmative and negative utterance sets, matched at the start of a reply.
var (
	yesRE = regexp.MustCompile(`(?i)^\s*(yes|yea|yup|yep|ya|yah|yeah|sure|ok|o\.?k\.?|okay|kk?)\b`)
	noRE  = regexp.MustCompile(`(?i)^\s*(no|nah|nope|n)\b`)
)

// Yes matches affirmative replies ("yes", "yeah", "ok", ...).
func Yes(text string) bool { return yesRE.MatchString(text) }

// No matches negative replies ("no", "nah", "nope", ...).
func No(text string) bool { return noRE.MatchString(text) }

// Contains matches replies containing sub, case-insensitively.
func Contains(sub string) MatchFunc {
	lower := strings.ToLower(sub)
	return func(text string) bool {
		return strings.Contains(strings.ToLower(text), lower)
	}
}

// Pattern matches replies against a regular expression.
// The expression must compile; Pattern is meant for literals known at
// registration time.
func Pattern(expr string) MatchFunc {
	re := regexp.MustCompile(expr)
	return re.MatchString
}

// Any matches every reply. Useful as the last explicit branch.
func Any(string) bool { return true }
