package recovery

import (
	"regexp"
	"strings"
)

// Pass is a single text transform targeting one corruption pattern.
// It is applied repeatedly until the pattern no longer matches.
type Pass struct {
	Name        string
	Pattern     *regexp.Regexp
	Replacement string
	// LeadingOnly restricts the pass to the start of the text.
	LeadingOnly bool
}

// Repair records a pass that changed the text and how many matches it rewrote.
type Repair struct {
	Pass  string `json:"pass"`
	Count int    `json:"count"`
}

// Apply rewrites text until p no longer matches and returns the result with the number of rewrites.
func (p Pass) Apply(text string) (string, int) {
	count := 0
	for {
		matches := p.Pattern.FindAllStringIndex(text, -1)
		if len(matches) == 0 {
			return text, count
		}
		next := p.Pattern.ReplaceAllString(text, p.Replacement)
		if next == text {
			return text, count
		}
		count += len(matches)
		text = next
	}
}

// Built-in pass names.
const (
	PassLeadingSeparators   = "leading-separators"
	PassArrayOpenSeparators = "array-open-separators"
	PassRepeatedSeparators  = "repeated-separators"
	PassMissingValue        = "missing-value"
	PassTrailingArrayComma  = "trailing-array-comma"
	PassTrailingObjectComma = "trailing-object-comma"
)

// ws matches Unicode whitespace, including U+3000 and U+00A0 which the plain \s class misses.
const ws = `[\s\x0B\x1C-\x1F\x{85}\p{Z}]`

// DefaultPasses returns the repair passes in the order they run.
func DefaultPasses() []Pass {
	return []Pass{
		{
			// ",, {...}" at the very start
			Name:        PassLeadingSeparators,
			Pattern:     regexp.MustCompile(`^` + ws + `*,+` + ws + `*`),
			LeadingOnly: true,
		},
		{
			// "[ ,, 1]" -> "[1]"
			Name:        PassArrayOpenSeparators,
			Pattern:     regexp.MustCompile(`\[` + ws + `*,+` + ws + `*`),
			Replacement: "[",
		},
		{
			// "1, ,, 2" -> "1, 2"
			Name:        PassRepeatedSeparators,
			Pattern:     regexp.MustCompile(`,` + ws + `*,+`),
			Replacement: ",",
		},
		{
			// `"a": ,` -> `"a": null,`
			Name:        PassMissingValue,
			Pattern:     regexp.MustCompile(`:` + ws + `*([,}\]])`),
			Replacement: ": null${1}",
		},
		{
			Name:        PassTrailingArrayComma,
			Pattern:     regexp.MustCompile(`,` + ws + `*\]`),
			Replacement: "]",
		},
		{
			Name:        PassTrailingObjectComma,
			Pattern:     regexp.MustCompile(`,` + ws + `*\}`),
			Replacement: "}",
		},
	}
}

// Repairer runs an ordered set of passes over the structural text of a payload.
// Quoted string literals are left untouched: every pattern is built from punctuation and
// whitespace only, so no match can cross a quote.
type Repairer struct {
	passes []Pass
}

// NewRepairer creates a Repairer. With no passes it uses DefaultPasses.
func NewRepairer(passes ...Pass) *Repairer {
	if len(passes) == 0 {
		passes = DefaultPasses()
	}
	return &Repairer{passes: passes}
}

// Passes returns the configured passes in order.
func (r *Repairer) Passes() []Pass {
	out := make([]Pass, len(r.passes))
	copy(out, r.passes)
	return out
}

// Repair applies every pass in order and reports the passes that changed something.
func (r *Repairer) Repair(text string) (string, []Repair) {
	segments, balanced := splitLiterals(text)
	if !balanced {
		// Unterminated literal: the quoting cannot be trusted, treat everything as structure.
		segments = []segment{{text: text}}
	}

	var repairs []Repair
	for _, pass := range r.passes {
		total := 0
		for i := range segments {
			if segments[i].literal {
				continue
			}
			if pass.LeadingOnly && i > 0 {
				break
			}
			var n int
			segments[i].text, n = pass.Apply(segments[i].text)
			total += n
		}
		if total > 0 {
			repairs = append(repairs, Repair{Pass: pass.Name, Count: total})
		}
	}

	var sb strings.Builder
	sb.Grow(len(text))
	for _, s := range segments {
		sb.WriteString(s.text)
	}
	return sb.String(), repairs
}

type segment struct {
	text    string
	literal bool
}

// splitLiterals cuts text into alternating structural and quoted-literal segments.
// balanced is false when the final literal is never closed.
func splitLiterals(text string) (segments []segment, balanced bool) {
	start := 0
	inString := false
	escaped := false

	for i := 0; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				segments = append(segments, segment{text: text[start : i+1], literal: true})
				start = i + 1
				inString = false
			}
			continue
		}
		if c == '"' {
			if i > start {
				segments = append(segments, segment{text: text[start:i]})
			}
			start = i
			inString = true
		}
	}

	if inString {
		return nil, false
	}
	if start < len(text) {
		segments = append(segments, segment{text: text[start:]})
	}
	return segments, true
}
