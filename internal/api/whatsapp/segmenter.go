package whatsapp

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MessageContext selects how long a single outbound message may be.
type MessageContext string

const (
	ContextConversational      MessageContext = "conversational"
	ContextWidgetData          MessageContext = "widget_data"
	ContextStructuredList      MessageContext = "structured_list"
	ContextDetailedExplanation MessageContext = "detailed_explanation"
)

// SplitMarker lets a prompt force a message boundary.
const SplitMarker = "|||"

var maxLengths = map[MessageContext]int{
	ContextConversational:      1200,
	ContextWidgetData:          1500,
	ContextStructuredList:      2500,
	ContextDetailedExplanation: 3800,
}

// MaxLength is measured in runes.
func (c MessageContext) MaxLength() int {
	if n, ok := maxLengths[c]; ok {
		return n
	}
	return maxLengths[ContextConversational]
}

var (
	listLine     = regexp.MustCompile(`^\s*([-*•]|\d+[.)])\s+`)
	paragraphSep = regexp.MustCompile(`\n\s*\n`)
)

// breakPoints are tried in order; each is accepted only past minBreakRatio of the limit.
var breakPoints = []string{"\n\n", "\n", ". ", "! ", "? ", ", ", "; ", " "}

const minBreakRatio = 0.75

// Segment splits a reply into parts no longer than the context allows. Text that already
// fits is returned whole unless it carries explicit split markers.
func Segment(text string, mc MessageContext) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	limit := mc.MaxLength()

	if strings.Contains(text, SplitMarker) {
		return bounded(strings.Split(text, SplitMarker), limit)
	}
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	switch paragraphs := paragraphSep.Split(text, -1); {
	case len(paragraphs) >= 3:
		return pack(paragraphs, limit, "\n\n")
	case hasListMarkup(text):
		return pack(listSections(text), limit, "\n")
	default:
		return pack(sentences(text), limit, " ")
	}
}

func hasListMarkup(text string) bool {
	for _, line := range strings.Split(text, "\n") {
		if listLine.MatchString(line) {
			return true
		}
	}
	return false
}

// listSections groups each heading line with the list items under it.
func listSections(text string) []string {
	var sections []string
	var cur []string
	inList := false
	for _, line := range strings.Split(text, "\n") {
		isItem := listLine.MatchString(line)
		if !isItem && inList && strings.TrimSpace(line) != "" {
			sections = append(sections, strings.Join(cur, "\n"))
			cur = nil
			inList = false
		}
		if isItem {
			inList = true
		}
		cur = append(cur, line)
	}
	if len(cur) > 0 {
		sections = append(sections, strings.Join(cur, "\n"))
	}
	return sections
}

func sentences(text string) []string {
	var out []string
	runes := []rune(text)
	start := 0
	for i, r := range runes {
		if (r == '.' || r == '!' || r == '?') && i+1 < len(runes) && unicode.IsSpace(runes[i+1]) {
			out = append(out, string(runes[start:i+1]))
			start = i + 1
		}
	}
	if start < len(runes) {
		out = append(out, string(runes[start:]))
	}
	return out
}

// pack greedily joins pieces with sep into parts of at most limit runes, splitting any
// piece that is too long on its own.
func pack(pieces []string, limit int, sep string) []string {
	var parts []string
	var cur string
	flush := func() {
		if s := strings.TrimSpace(cur); s != "" {
			parts = append(parts, s)
		}
		cur = ""
	}

	for _, p := range pieces {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if utf8.RuneCountInString(p) > limit {
			flush()
			parts = append(parts, splitToMax(p, limit)...)
			continue
		}
		candidate := p
		if cur != "" {
			candidate = cur + sep + p
		}
		if utf8.RuneCountInString(candidate) > limit {
			flush()
			candidate = p
		}
		cur = candidate
	}
	flush()
	return parts
}

// bounded keeps every piece as its own part, only splitting the oversized ones.
func bounded(pieces []string, limit int) []string {
	var parts []string
	for _, p := range pieces {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, splitToMax(p, limit)...)
		}
	}
	return parts
}

// splitToMax cuts text at the best break point, falling back to a hard cut.
func splitToMax(text string, limit int) []string {
	var parts []string
	runes := []rune(strings.TrimSpace(text))
	for len(runes) > limit {
		cut := breakIndex(runes, limit)
		if part := strings.TrimSpace(string(runes[:cut])); part != "" {
			parts = append(parts, part)
		}
		runes = []rune(strings.TrimSpace(string(runes[cut:])))
	}
	if len(runes) > 0 {
		parts = append(parts, string(runes))
	}
	return parts
}

// breakIndex returns the rune offset just after the chosen separator within runes[:limit].
func breakIndex(runes []rune, limit int) int {
	window := string(runes[:limit])
	minAt := int(float64(limit) * minBreakRatio)
	for _, bp := range breakPoints {
		byteIdx := strings.LastIndex(window, bp)
		if byteIdx < 0 {
			continue
		}
		at := utf8.RuneCountInString(window[:byteIdx]) + utf8.RuneCountInString(bp)
		if at >= minAt {
			return at
		}
	}
	return limit
}

// ContextFor picks the message context for a reply.
func ContextFor(isWidget, planningRecap bool, text string) MessageContext {
	switch {
	case isWidget:
		return ContextWidgetData
	case planningRecap || hasListMarkup(text):
		return ContextStructuredList
	case utf8.RuneCountInString(text) > ContextStructuredList.MaxLength():
		return ContextDetailedExplanation
	default:
		return ContextConversational
	}
}
