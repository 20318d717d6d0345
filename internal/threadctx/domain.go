package threadctx

import "strings"

// commonMailDomains are consumer mail providers too common to be
// useful as an auto-rule signal: nearly every household uses one of
// these, so a sender's habit of always landing in one folder says
// nothing about that domain in general (adapted from the teacher's
// internal/tracker/learner.go isCommonDomain, spec §4.6 SenderProfile
// auto_rule_candidate).
var commonMailDomains = map[string]bool{
	"gmail.com":      true,
	"yahoo.com":      true,
	"hotmail.com":    true,
	"outlook.com":    true,
	"icloud.com":     true,
	"protonmail.com": true,
	"mail.com":       true,
}

// atsDomains are applicant-tracking-system domains handled by their
// own classification path rather than by a per-sender auto-rule
// (adapted from the teacher's internal/filter/domain.go atsDomains
// list via internal/tracker/learner.go isATSDomain).
var atsDomains = map[string]bool{
	"greenhouse":      true,
	"lever":           true,
	"ashbyhq":         true,
	"smartrecruiters": true,
	"workday":         true,
	"myworkdayjobs":   true,
	"icims":           true,
	"taleo":           true,
	"jobvite":         true,
	"breezy":          true,
}

// domainExcludedFromAutoRule reports whether domain is too generic
// (a common consumer mail provider) or already handled by ATS-specific
// routing to make a trustworthy auto-rule candidate, regardless of how
// concentrated a sender's folder history looks.
func domainExcludedFromAutoRule(senderEmail string) bool {
	domain := emailDomain(senderEmail)
	if domain == "" {
		return false
	}
	if commonMailDomains[domain] {
		return true
	}
	return atsDomains[atsDomainKey(domain)]
}

func emailDomain(senderEmail string) string {
	at := strings.LastIndex(senderEmail, "@")
	if at < 0 || at == len(senderEmail)-1 {
		return ""
	}
	return strings.ToLower(senderEmail[at+1:])
}

// atsDomainKey strips the common suffixes and subdomain prefixes
// (mail., jobs., careers., ...) ATS vendors publish under, leaving the
// bare vendor name to match against atsDomains.
func atsDomainKey(domain string) string {
	name := domain
	for _, suffix := range []string{".com", ".io", ".co", ".net", ".org"} {
		name = strings.TrimSuffix(name, suffix)
	}
	for _, prefix := range []string{"mail.", "jobs.", "careers.", "apply.", "www."} {
		name = strings.TrimPrefix(name, prefix)
	}
	return name
}
