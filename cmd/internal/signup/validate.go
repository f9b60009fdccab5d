package signup

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// DefaultMinWhyChars is the minimum trimmed length of the justification, in runes.
	DefaultMinWhyChars = 20
	// DefaultMaxWhyChars caps the justification length, in runes.
	DefaultMaxWhyChars = 2000

	maxEmailBytes   = 254
	maxRepeatedRun  = 6
	maxAnswerLength = 500
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	urlPattern   = regexp.MustCompile(`(?i)https?://|www\.`)
)

// DefaultDisposableDomains is the built-in throwaway-mailbox denylist.
var DefaultDisposableDomains = []string{
	"10minutemail.com",
	"dispostable.com",
	"fakeinbox.com",
	"getnada.com",
	"guerrillamail.com",
	"guerrillamail.net",
	"mailinator.com",
	"maildrop.cc",
	"mailnesia.com",
	"sharklasers.com",
	"tempail.com",
	"temp-mail.org",
	"tempmail.com",
	"throwawaymail.com",
	"trashmail.com",
	"yopmail.com",
}

// domainSet is a normalized denylist. Subdomains of a listed domain match too.
type domainSet map[string]struct{}

func newDomainSet(lists ...[]string) domainSet {
	out := domainSet{}
	for _, list := range lists {
		for _, d := range list {
			d = strings.Trim(strings.ToLower(strings.TrimSpace(d)), ".")
			if d == "" {
				continue
			}
			out[d] = struct{}{}
		}
	}
	return out
}

func (s domainSet) contains(domain string) bool {
	domain = strings.ToLower(domain)
	for {
		if _, ok := s[domain]; ok {
			return true
		}
		i := strings.IndexByte(domain, '.')
		if i < 0 {
			return false
		}
		domain = domain[i+1:]
	}
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

func validateEmail(email string, deny domainSet) error {
	if email == "" {
		return invalid("email", "email_required", "Email is required")
	}
	if len(email) > maxEmailBytes || !emailPattern.MatchString(email) {
		return invalid("email", "email_invalid", "Please enter a valid email address")
	}
	domain := email[strings.LastIndexByte(email, '@')+1:]
	if deny.contains(domain) {
		return invalid("email", "email_disposable", "Please use a permanent email address")
	}
	return nil
}

func validateWhy(why string, minChars, maxChars int) error {
	n := utf8.RuneCountInString(why)
	if n < minChars {
		return invalid("why", "why_too_short",
			fmt.Sprintf("Please tell us a bit more about why you want to join (at least %d characters)", minChars))
	}
	if maxChars > 0 && n > maxChars {
		return invalid("why", "why_too_long", "Your answer is too long")
	}
	if urlPattern.MatchString(why) {
		return invalid("why", "why_contains_url", "Please don't include links in your answer")
	}
	if hasRepeatedRun(why, maxRepeatedRun) {
		return invalid("why", "why_spam", "Please provide a genuine answer")
	}
	return nil
}

// hasRepeatedRun reports whether s contains n or more consecutive identical runes.
func hasRepeatedRun(s string, n int) bool {
	if n <= 1 {
		return s != ""
	}
	var prev rune
	run := 0
	for i, r := range s {
		if i > 0 && r == prev {
			run++
		} else {
			run = 1
		}
		if run >= n {
			return true
		}
		prev = r
	}
	return false
}

func validateAnswer(field, value string) error {
	if value == "" {
		return invalid(field, "required", "Please complete all fields")
	}
	if utf8.RuneCountInString(value) > maxAnswerLength {
		return invalid(field, "too_long", "Your answer is too long")
	}
	return nil
}
