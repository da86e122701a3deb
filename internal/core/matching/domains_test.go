package matching

import "testing"

func TestCompanySlug(t *testing.T) {
	cases := []struct {
		sender string
		want   string
	}{
		{"stripe.com", "stripe"},
		{"careers.stripe.com", "stripe"},
		{"mail.notifications.datadog.com", "datadog"},
		{"acmecorp.co.uk", "acmecorp"},
		{"hr.initech.de", "initech"},
		{"gmail.com", ""},
		{"protonmail.com", ""},
		{"greenhouse.io", ""},
		{"hire.lever.co", ""},
		{"localhost", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := companySlug(tc.sender); got != tc.want {
			t.Fatalf("companySlug(%q) = %q, want %q", tc.sender, got, tc.want)
		}
	}
}

func TestCompanySlugKeepsBareTwoLabelDomain(t *testing.T) {
	// careers.io is a complete domain, not a prefix to strip.
	if got := companySlug("careers.io"); got != "careers" {
		t.Fatalf("companySlug(careers.io) = %q, want careers", got)
	}
}

func TestSenderDomain(t *testing.T) {
	cases := []struct {
		address string
		want    string
	}{
		{"hr@stripe.com", "stripe.com"},
		{"HR@Careers.Stripe.COM", "careers.stripe.com"},
		{"no-at-sign", ""},
		{"trailing@", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := senderDomain(tc.address); got != tc.want {
			t.Fatalf("senderDomain(%q) = %q, want %q", tc.address, got, tc.want)
		}
	}
}
