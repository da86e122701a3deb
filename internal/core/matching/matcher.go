// Package matching associates an inbound email with one of the user's tracked
// applications. Matching is a pure read: it never mutates anything, so the
// orchestrator can rerun it safely.
package matching

import (
	"context"
	"fmt"
	"strings"

	"github.com/mvoronkov/jobtrail/internal/core/domain"
	"github.com/mvoronkov/jobtrail/internal/core/ports"
)

const (
	confidenceATS    = 0.90
	confidenceDomain = 0.95
	confidenceAlias  = 0.85
)

type Matcher struct {
	repo    ports.ApplicationRepository
	aliases *AliasTable
}

func NewMatcher(repo ports.ApplicationRepository, aliases *AliasTable) *Matcher {
	if aliases == nil {
		aliases = SeededAliasTable()
	}
	return &Matcher{repo: repo, aliases: aliases}
}

// Match evaluates the strategies in strict priority order and stops at the
// first one that resolves to a tracked application. ATS extraction runs
// before the direct-domain rule, so an ATS sender always yields the company
// named in the mail, never the ATS vendor itself.
func (m *Matcher) Match(ctx context.Context, userID string, email domain.ParsedEmail) (domain.MatchResult, error) {
	sender := senderDomain(email.From)

	if provider, ok := providerForDomain(sender); ok {
		company := provider.extract(email)
		if company != "" {
			app, err := m.findApplication(ctx, userID, company)
			if err != nil {
				return domain.MatchResult{}, err
			}
			if app != nil {
				return domain.MatchResult{
					ApplicationID: &app.ID,
					CompanyName:   app.CompanyName,
					Confidence:    confidenceATS,
					Method:        domain.MatchMethodATS,
				}, nil
			}
		}
	} else if slug := companySlug(sender); slug != "" {
		app, err := m.findBySlug(ctx, userID, slug)
		if err != nil {
			return domain.MatchResult{}, err
		}
		if app != nil {
			return domain.MatchResult{
				ApplicationID: &app.ID,
				CompanyName:   app.CompanyName,
				Confidence:    confidenceDomain,
				Method:        domain.MatchMethodDomain,
			}, nil
		}
	}

	if canonical, ok := m.aliases.Resolve(sender); ok {
		app, err := m.findApplication(ctx, userID, canonical)
		if err != nil {
			return domain.MatchResult{}, err
		}
		if app != nil {
			return domain.MatchResult{
				ApplicationID: &app.ID,
				CompanyName:   app.CompanyName,
				Confidence:    confidenceAlias,
				Method:        domain.MatchMethodAlias,
			}, nil
		}
	}

	if result, err := m.matchSubject(ctx, userID, email.Subject); err != nil {
		return domain.MatchResult{}, err
	} else if result != nil {
		return *result, nil
	}

	return domain.MatchResult{Method: domain.MatchMethodNone}, nil
}

// matchSubject tries every template and keeps the highest-scoring one that
// resolves to an application. Declaration order only breaks exact score ties.
func (m *Matcher) matchSubject(ctx context.Context, userID, subject string) (*domain.MatchResult, error) {
	var best *domain.MatchResult
	for _, tmpl := range subjectTemplates {
		company := tmpl.extract(subject)
		if company == "" {
			continue
		}
		if best != nil && tmpl.score <= best.Confidence {
			continue
		}
		app, err := m.findApplication(ctx, userID, company)
		if err != nil {
			return nil, err
		}
		if app == nil {
			continue
		}
		best = &domain.MatchResult{
			ApplicationID: &app.ID,
			CompanyName:   app.CompanyName,
			Confidence:    tmpl.score,
			Method:        domain.MatchMethodSubject,
		}
	}
	return best, nil
}

// findApplication looks up a tracked application for a recovered company
// name: case-insensitive exact match first, then substring, newest first.
func (m *Matcher) findApplication(ctx context.Context, userID, company string) (*domain.Application, error) {
	company = strings.TrimSpace(company)
	if company == "" {
		return nil, nil
	}

	apps, err := m.repo.ListByCompanyName(ctx, userID, company)
	if err != nil {
		return nil, fmt.Errorf("list applications by company %q: %w", company, err)
	}
	if len(apps) == 0 {
		return nil, nil
	}

	lowered := strings.ToLower(company)
	for i := range apps {
		if strings.ToLower(apps[i].CompanyName) == lowered {
			return &apps[i], nil
		}
	}
	return &apps[0], nil
}

// findBySlug matches a domain-derived slug against company names. The slug
// has no word boundaries ("acmecorp"), so when the substring query misses it
// falls back to comparing normalized names across the user's applications.
func (m *Matcher) findBySlug(ctx context.Context, userID, slug string) (*domain.Application, error) {
	app, err := m.findApplication(ctx, userID, slug)
	if err != nil || app != nil {
		return app, err
	}

	apps, err := m.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list applications for slug %q: %w", slug, err)
	}
	for i := range apps {
		normalized := normalizeCompany(apps[i].CompanyName)
		if normalized == "" {
			continue
		}
		if strings.Contains(normalized, slug) || strings.Contains(slug, normalized) {
			return &apps[i], nil
		}
	}
	return nil, nil
}

func normalizeCompany(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func senderDomain(address string) string {
	at := strings.LastIndex(address, "@")
	if at < 0 || at == len(address)-1 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(address[at+1:]))
}
