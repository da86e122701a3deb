package matching

import (
	"regexp"
	"strings"

	"github.com/mvoronkov/jobtrail/internal/core/domain"
)

// atsProvider is one applicant-tracking vendor: the domains it sends from and
// the rule that recovers the employer's name from its mail. The set is closed
// on purpose; adding a vendor is a compile-time change, not a table edit.
type atsProvider struct {
	name    string
	domains []string
	extract func(email domain.ParsedEmail) string
}

var subjectApplicationRe = regexp.MustCompile(`(?i)(?:application|applying|applied)\s+(?:to|at|with|for)\s+(.+)`)
var subjectThankYouRe = regexp.MustCompile(`(?i)thank you for applying to\s+(.+)`)
var subjectPositionAtRe = regexp.MustCompile(`(?i)\bposition\s+at\s+(.+)`)

var atsProviders = []atsProvider{
	{
		name:    "greenhouse",
		domains: []string{"greenhouse.io", "greenhouse-mail.io"},
		extract: func(email domain.ParsedEmail) string {
			if c := firstSubmatch(subjectApplicationRe, email.Subject); c != "" {
				return cleanCompany(c)
			}
			return displayNameCompany(email.FromName, "greenhouse")
		},
	},
	{
		name:    "lever",
		domains: []string{"lever.co", "hire.lever.co"},
		extract: func(email domain.ParsedEmail) string {
			if c := firstSubmatch(subjectThankYouRe, email.Subject); c != "" {
				return cleanCompany(c)
			}
			if c := firstSubmatch(subjectApplicationRe, email.Subject); c != "" {
				return cleanCompany(c)
			}
			return displayNameCompany(email.FromName, "lever")
		},
	},
	{
		name:    "workday",
		domains: []string{"myworkday.com", "workday.com", "myworkdayjobs.com"},
		extract: func(email domain.ParsedEmail) string {
			if c := displayNameCompany(email.FromName, "workday"); c != "" {
				return c
			}
			return cleanCompany(firstSubmatch(subjectApplicationRe, email.Subject))
		},
	},
	{
		name:    "icims",
		domains: []string{"icims.com", "talent.icims.com"},
		extract: func(email domain.ParsedEmail) string {
			if c := displayNameCompany(email.FromName, "icims"); c != "" {
				return c
			}
			return cleanCompany(firstSubmatch(subjectApplicationRe, email.Subject))
		},
	},
	{
		name:    "ashby",
		domains: []string{"ashbyhq.com"},
		extract: func(email domain.ParsedEmail) string {
			if c := firstSubmatch(subjectApplicationRe, email.Subject); c != "" {
				return cleanCompany(c)
			}
			return displayNameCompany(email.FromName, "ashby")
		},
	},
	{
		name:    "smartrecruiters",
		domains: []string{"smartrecruiters.com"},
		extract: func(email domain.ParsedEmail) string {
			if c := displayNameCompany(email.FromName, "smartrecruiters"); c != "" {
				return c
			}
			return cleanCompany(firstSubmatch(subjectPositionAtRe, email.Subject))
		},
	},
	{
		name:    "taleo",
		domains: []string{"taleo.net", "tbe.taleo.net"},
		extract: func(email domain.ParsedEmail) string {
			if c := displayNameCompany(email.FromName, "taleo"); c != "" {
				return c
			}
			return cleanCompany(firstSubmatch(subjectApplicationRe, email.Subject))
		},
	},
	{
		name:    "jobvite",
		domains: []string{"jobvite.com", "mail.jobvite.com"},
		extract: func(email domain.ParsedEmail) string {
			if c := displayNameCompany(email.FromName, "jobvite"); c != "" {
				return c
			}
			return cleanCompany(firstSubmatch(subjectApplicationRe, email.Subject))
		},
	},
}

func providerForDomain(sender string) (atsProvider, bool) {
	for _, p := range atsProviders {
		for _, d := range p.domains {
			if sender == d || strings.HasSuffix(sender, "."+d) {
				return p, true
			}
		}
	}
	return atsProvider{}, false
}

func isATSDomain(sender string) bool {
	_, ok := providerForDomain(sender)
	return ok
}

func firstSubmatch(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

// displayNameCompany treats the sender display name as the employer unless it
// is obviously the vendor or a generic mailbox label.
func displayNameCompany(name, vendor string) string {
	name = cleanCompany(name)
	if name == "" {
		return ""
	}
	lowered := strings.ToLower(name)
	if strings.Contains(lowered, vendor) {
		return ""
	}
	for _, generic := range []string{"no-reply", "noreply", "do not reply", "recruiting team", "talent acquisition", "careers", "notifications"} {
		if lowered == generic {
			return ""
		}
	}
	for _, suffix := range []string{" recruiting", " careers", " talent", " hiring team", " recruitment"} {
		if strings.HasSuffix(lowered, suffix) {
			return strings.TrimSpace(name[:len(name)-len(suffix)])
		}
	}
	return name
}

// cleanCompany trims reply prefixes, trailing clauses and punctuation from a
// recovered company string and rejects values too long to be a name.
func cleanCompany(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"'`)
	for _, sep := range []string{" - ", " | ", "!", "?", ". "} {
		if idx := strings.Index(s, sep); idx > 0 {
			s = s[:idx]
		}
	}
	s = strings.TrimRight(s, ".,;: ")
	s = strings.Join(strings.Fields(s), " ")
	if s == "" || len(s) > 60 {
		return ""
	}
	return s
}
