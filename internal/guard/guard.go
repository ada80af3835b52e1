// Package guard screens model replies for internal-implementation leakage
// before anything is sent to an end user.
//
// The scan is a case-insensitive substring match against a fixed denylist.
// A single hit discards the entire reply: the caller gets a generic safe
// sentence back plus the findings so it can raise an operator alert. The
// guard never rewrites partial content; redacting in place risks leaving a
// recognisable fragment behind.
package guard

import "strings"

// SafeReply replaces any reply that trips the denylist.
const SafeReply = "I'd be happy to help you! 😊 What would you like to know?"

// denylist holds internal vocabulary that must never reach a user. Checked
// lower-cased; entries are expected to be lower case.
var denylist = []string{
	"system prompt",
	"prompt_parts",
	"fragment catalog",
	"buildsystemprompt",
	"instructions",
	"cerebras",
	"openai",
	"gorm",
	"sqlite",
	"api key",
	"auth-key",
	"database",
	"schema",
	"webhook",
	"source code",
}

// Result is the outcome of screening one reply.
type Result struct {
	// Reply is safe to send: the original text when clean, SafeReply when
	// a leak was suppressed.
	Reply string
	// Leaked is true when the original reply was replaced.
	Leaked bool
	// Matches lists the denylist entries found, for the operator alert.
	Matches []string
}

// Screen scans reply and returns a Result whose Reply field never contains
// a denylisted token. Screening SafeReply itself is a no-op, so the guard
// is idempotent.
func Screen(reply string) Result {
	lower := strings.ToLower(reply)
	var matches []string
	for _, term := range denylist {
		if strings.Contains(lower, term) {
			matches = append(matches, term)
		}
	}
	if len(matches) == 0 {
		return Result{Reply: reply}
	}
	return Result{Reply: SafeReply, Leaked: true, Matches: matches}
}
