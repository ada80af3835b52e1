// Package classify maps an incoming chat message (plus recent history) to a
// set of topic tags that drive system-prompt assembly downstream.
//
// Detection is deliberately cheap: ordered regular-expression tables over
// lower-cased text, no model calls. Injection screening runs first and
// short-circuits everything else; a matched injection yields the single
// security_alert tag so the caller can take the defensive path without
// ever forwarding the message to the model.
package classify

import (
	"regexp"
	"strings"
)

// Topic tags recognised by the classifier. PromptAssembler keys off these.
const (
	TagGreeting      = "greeting"
	TagAppointment   = "appointment"
	TagProject       = "project"
	TagSkills        = "skills"
	TagExperience    = "experience"
	TagPersonal      = "personal"
	TagContact       = "contact"
	TagGeneral       = "general"
	TagSecurityAlert = "security_alert"
)

// Result is the outcome of classifying one inbound message.
type Result struct {
	// Tags is ordered and deduplicated. Never empty: defaults to [general].
	Tags []string
	// IsInjection is true when the message matched an injection pattern.
	// Tags is then exactly [security_alert].
	IsInjection bool
}

// injectionPatterns screen the raw message for prompt-injection attempts.
// The list is ordered roughly by observed frequency; first hit wins.
var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ignore\s+(previous|above|all|prior)\s+(instructions?|prompts?|rules?|commands?)`),
	regexp.MustCompile(`(?i)(show|reveal|display|print|output|give|tell)\s+(me\s+)?(your\s+)?(system\s+)?(prompt|instruction|code|configuration|rules?)`),
	regexp.MustCompile(`(?i)what\s+(are|is)\s+(your\s+)?(system\s+)?(instructions?|prompts?|rules?|programming)`),
	regexp.MustCompile(`(?i)repeat\s+(everything|all|what|text)\s+(above|before|prior)`),
	regexp.MustCompile(`(?i)you\s+are\s+now\s+(a|an)?`),
	regexp.MustCompile(`(?i)forget\s+(previous|all|everything)`),
	regexp.MustCompile(`(?i)(output|show|print)\s+your\s+(training|system|configuration)`),
	regexp.MustCompile(`(?i)how\s+(were|are)\s+you\s+(programmed|made|built|created|coded)`),
	regexp.MustCompile(`(?i)<\|.*?\|>`),
	regexp.MustCompile(`(?i)\{system\}`),
	regexp.MustCompile(`(?i)sudo\s+mode`),
	regexp.MustCompile(`(?i)developer\s+mode`),
	regexp.MustCompile(`(?i)admin\s+mode`),
	regexp.MustCompile(`(?i)act\s+as\s+(if|a|an)\b`),
	regexp.MustCompile(`(?i)role.*?play`),
	regexp.MustCompile(`(?i)pretend\s+you\s+are`),
}

// topicRule binds one regex group to the tags it contributes. Groups are
// independent: a message may match several.
type topicRule struct {
	re   *regexp.Regexp
	tags []string
}

var topicRules = []topicRule{
	{regexp.MustCompile(`appointment|book|schedule|meeting|slot|cancel|reschedule|meet|talk|call`), []string{TagAppointment}},
	{regexp.MustCompile(`boardbro|board bro|project|education|student portal|what.*working|current.*project`), []string{TagProject}},
	{regexp.MustCompile(`\bai\b|artificial intelligence|chatbot|\bbot\b|automation|llm|technology|tech|stack|how.*build|development`), []string{TagSkills, TagExperience}},
	{regexp.MustCompile(`study|student|college|school|learning|where.*from|personal|about ranvir|who.*ranvir`), []string{TagPersonal}},
	{regexp.MustCompile(`contact|reach|connect|talk to ranvir|meet ranvir|how to.*ranvir`), []string{TagContact}},
}

// greetingOnly matches a bare salutation with no further content. Such
// messages get a minimal prompt; running the topical groups on "hi" only
// drags in history noise.
var greetingOnly = regexp.MustCompile(`^(hi+|hey+|hello+|yo|sup|hola|namaste|good\s+(morning|afternoon|evening))[\s.!?]*$`)

// Message classifies the current message together with recent history
// content. History participates only in the topical pass; injection
// screening looks at the message alone.
func Message(message string, history []string) Result {
	trimmed := strings.TrimSpace(message)

	if IsInjection(trimmed) {
		return Result{Tags: []string{TagSecurityAlert}, IsInjection: true}
	}

	lower := strings.ToLower(trimmed)
	if greetingOnly.MatchString(lower) {
		return Result{Tags: []string{TagGreeting}}
	}

	combined := lower
	if len(history) > 0 {
		combined += " " + strings.ToLower(strings.Join(history, " "))
	}

	seen := make(map[string]bool, 8)
	var tags []string
	for _, r := range topicRules {
		if !r.re.MatchString(combined) {
			continue
		}
		for _, t := range r.tags {
			if !seen[t] {
				seen[t] = true
				tags = append(tags, t)
			}
		}
	}
	if len(tags) == 0 {
		tags = []string{TagGeneral}
	}
	return Result{Tags: tags}
}

// IsInjection reports whether the message alone trips an injection pattern.
func IsInjection(message string) bool {
	for _, re := range injectionPatterns {
		if re.MatchString(message) {
			return true
		}
	}
	return false
}
