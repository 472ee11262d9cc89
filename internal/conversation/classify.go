package conversation

import (
	"regexp"
	"strings"
)

// Intent is the deterministic classification of one caller turn. Keyword
// rules keep HandleTurn reproducible; an optional LLM refinement can sit in
// front of this but always falls back here on timeout.
type Intent string

const (
	IntentUnknown   Intent = "unknown"
	IntentService   Intent = "service"
	IntentReturning Intent = "returning"
	IntentNew       Intent = "new"
	IntentInfo      Intent = "info"
	IntentBooking   Intent = "booking"
	IntentYes       Intent = "yes"
	IntentNo        Intent = "no"
	IntentSkip      Intent = "skip"
	IntentReset     Intent = "reset"
	IntentHours     Intent = "hours"
)

var intentRules = []struct {
	intent   Intent
	keywords []string
}{
	{IntentReset, []string{"start over", "start again", "restart", "from the beginning"}},
	{IntentSkip, []string{"skip", "rather not", "prefer not", "no thanks", "not share"}},
	{IntentReturning, []string{"returning", "been here before", "existing patient", "i'm a patient", "im a patient", "came before", "come before"}},
	{IntentNew, []string{"new patient", "first time", "never been", "not a patient", "register"}},
	{IntentBooking, []string{"book", "appointment", "schedule", "reserve", "come in", "see the dentist"}},
	{IntentHours, []string{"hours", "open", "location", "address", "where are you"}},
	{IntentInfo, []string{"price", "cost", "how much", "information", "tell me about", "treatment", "cleaning", "canal", "crown", "filling", "whitening", "extraction", "x-ray", "xray", "checkup"}},
	{IntentYes, []string{"yes", "yeah", "yep", "sure", "please", "sounds good", "correct", "that works", "ok", "okay"}},
	{IntentNo, []string{"no", "nope", "not really", "don't", "dont"}},
	{IntentService, []string{"help", "question", "need", "want", "like to", "calling"}},
}

// classify maps one caller turn to an intent. Matching is on whole words so
// "look" never triggers "ok"; earlier rules win, so specific phrasing
// ("new patient") beats generic service words.
func classify(input string) Intent {
	joined := normalizeUtterance(input)
	if joined == "" {
		return IntentUnknown
	}
	padded := " " + joined + " "
	for _, rule := range intentRules {
		for _, kw := range rule.keywords {
			if strings.Contains(padded, " "+normalizeUtterance(kw)+" ") {
				return rule.intent
			}
		}
	}
	return IntentUnknown
}

// normalizeUtterance lowercases and strips punctuation so keyword rules match
// on whole words.
func normalizeUtterance(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '\'':
			// drop apostrophes so "i'm" and "im" collapse together
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

var (
	dateRe  = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})\b`)
	timeRe  = regexp.MustCompile(`\b(\d{1,2}):(\d{2})\b`)
	emailRe = regexp.MustCompile(`\b[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}\b`)
	phoneRe = regexp.MustCompile(`[\d][\d\s().\-]{8,}[\d]`)
	nameRe  = regexp.MustCompile(`(?i)\b(?:my name is|name's|this is|i am|i'm)\s+([a-zA-Z][a-zA-Z '\-]{1,60})`)
)

// extractDate pulls the first YYYY-MM-DD token.
func extractDate(input string) string {
	return dateRe.FindString(input)
}

// extractTime pulls the first HH:MM token, zero-padding the hour.
func extractTime(input string) string {
	m := timeRe.FindStringSubmatch(input)
	if m == nil {
		return ""
	}
	hh := m[1]
	if len(hh) == 1 {
		hh = "0" + hh
	}
	return hh + ":" + m[2]
}

func extractEmail(input string) string {
	return emailRe.FindString(input)
}

// extractPhone pulls the first run that looks like a phone number; the
// directory's normalizer has the final say on validity.
func extractPhone(input string) string {
	for _, candidate := range phoneRe.FindAllString(input, -1) {
		digits := 0
		for _, r := range candidate {
			if r >= '0' && r <= '9' {
				digits++
			}
		}
		if digits == 10 || digits == 11 {
			return candidate
		}
	}
	return ""
}

// extractName pulls a self-introduction ("my name is Marie Tremblay"). When
// the machine is explicitly awaiting a name a bare answer is accepted as-is
// by the caller of this function.
func extractName(input string) string {
	m := nameRe.FindStringSubmatch(input)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// looksLikeBareName accepts a short free-text answer as a name when a name
// was asked for: letters, spaces, and a couple of words.
func looksLikeBareName(input string) bool {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" || len(trimmed) > 60 {
		return false
	}
	words := strings.Fields(trimmed)
	if len(words) > 4 {
		return false
	}
	for _, w := range words {
		for _, r := range w {
			if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r == '\'' || r == '-' || r == '.') {
				return false
			}
		}
	}
	return true
}
