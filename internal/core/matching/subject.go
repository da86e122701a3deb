package matching

import "regexp"

// subjectTemplate is one fuzzy subject pattern with its declared score. The
// matcher evaluates all templates and keeps the highest-scoring success, not
// the first in declaration order.
type subjectTemplate struct {
	re    *regexp.Regexp
	score float64
}

var subjectTemplates = []subjectTemplate{
	{regexp.MustCompile(`(?i)^your application (?:to|at|with|for) (.+)$`), 0.75},
	{regexp.MustCompile(`(?i)thank you for (?:applying|your application) (?:to|at|with) (.+)$`), 0.75},
	{regexp.MustCompile(`(?i)(?:update|news) (?:on|about|regarding) your application (?:to|at|with) (.+)$`), 0.70},
	{regexp.MustCompile(`(?i)\binterview (?:with|at) (.+)$`), 0.70},
	{regexp.MustCompile(`(?i)\bnext steps (?:with|at) (.+)$`), 0.65},
	{regexp.MustCompile(`(?i)\byour candidacy (?:at|with) (.+)$`), 0.65},
}

func (t subjectTemplate) extract(subject string) string {
	return cleanCompany(firstSubmatch(t.re, subject))
}
