package matching

import "strings"

// Subdomain prefixes that carry no employer signal and get stripped before
// deriving a company slug: careers.stripe.com -> stripe.com.
var strippedPrefixes = []string{
	"careers.", "jobs.", "apply.", "recruiting.", "talent.", "hr.",
	"mail.", "email.", "notify.", "notification.", "notifications.", "news.",
}

// Public mailbox providers never identify an employer.
var publicMailDomains = map[string]struct{}{
	"gmail.com":      {},
	"googlemail.com": {},
	"outlook.com":    {},
	"hotmail.com":    {},
	"live.com":       {},
	"yahoo.com":      {},
	"icloud.com":     {},
	"me.com":         {},
	"proton.me":      {},
	"protonmail.com": {},
	"aol.com":        {},
	"gmx.com":        {},
	"mail.ru":        {},
	"qq.com":         {},
	"163.com":        {},
}

// companySlug derives an employer slug from a sender domain, or "" when the
// domain carries no employer signal (public mailbox or ATS vendor).
func companySlug(sender string) string {
	if sender == "" {
		return ""
	}
	if _, ok := publicMailDomains[sender]; ok {
		return ""
	}
	if isATSDomain(sender) {
		return ""
	}

	stripped := true
	for stripped {
		stripped = false
		for _, prefix := range strippedPrefixes {
			if strings.HasPrefix(sender, prefix) && strings.Count(sender, ".") > 1 {
				sender = sender[len(prefix):]
				stripped = true
			}
		}
	}

	labels := strings.Split(sender, ".")
	if len(labels) < 2 {
		return ""
	}
	// hr@stripe.co.uk style: skip a two-letter country label before the TLD.
	idx := len(labels) - 2
	if idx > 0 && len(labels[idx]) <= 3 && (labels[idx] == "co" || labels[idx] == "com" || labels[idx] == "org" || labels[idx] == "ac") {
		idx--
	}
	slug := labels[idx]
	if len(slug) < 2 {
		return ""
	}
	return slug
}
