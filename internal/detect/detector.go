package detect

import "regexp"

// Question is one spotted question plus the transcript window it was
// found in. Transient; handed straight to the response stage.
type Question struct {
	Text    string
	Context string
}

// Pattern is a named matcher. List position is priority: earlier
// patterns win even when a later one would also match.
type Pattern struct {
	Name string
	re   *regexp.Regexp
}

func NewPattern(name, expr string) Pattern {
	return Pattern{Name: name, re: regexp.MustCompile(expr)}
}

// DefaultPatterns is a conservative whitelist of meeting-question
// forms. False negatives are expected; the patterns stay narrow to
// keep false positives down.
func DefaultPatterns() []Pattern {
	return []Pattern{
		NewPattern("recent-work", `(?i)what did we (finish|complete|do) (last week|this sprint|yesterday)`),
		NewPattern("blockers", `(?i)any (blockers|issues|problems)`),
		NewPattern("task-done", `(?i)did (you|we) (complete|finish) (the|.*)`),
		NewPattern("wh-question", `(?i)(what|how|when|where|why) (is|are|did|do|will)`),
		NewPattern("status-on", `(?i)(status|update) on (.*)`),
		NewPattern("can-you", `(?i)can you (tell me|show me|explain)`),
		NewPattern("progress", `(?i)(what's|whats) (the|our) (progress|status)`),
	}
}

type Detector struct {
	patterns []Pattern
}

func NewDetector() *Detector {
	return &Detector{patterns: DefaultPatterns()}
}

func NewDetectorWithPatterns(patterns []Pattern) *Detector {
	return &Detector{patterns: patterns}
}

func (d *Detector) Patterns() []Pattern {
	return append([]Pattern(nil), d.patterns...)
}

// Detect matches text against the pattern list in order and returns
// the first match of the first matching pattern.
func (d *Detector) Detect(text string) (Question, bool) {
	for _, p := range d.patterns {
		if m := p.re.FindString(text); m != "" {
			return Question{Text: m, Context: text}, true
		}
	}

	return Question{}, false
}
