package matching

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed aliases.yaml
var seededAliases []byte

// AliasTable resolves sender domains that belong to a corporate family onto
// the canonical employer name (subsidiary brands, acquired product domains).
type AliasTable struct {
	byDomain map[string]string
}

type aliasFile struct {
	Families []struct {
		Name    string   `yaml:"name"`
		Domains []string `yaml:"domains"`
	} `yaml:"families"`
}

func NewAliasTable(data []byte) (*AliasTable, error) {
	var file aliasFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse alias table: %w", err)
	}

	byDomain := make(map[string]string)
	for _, family := range file.Families {
		name := strings.TrimSpace(family.Name)
		if name == "" {
			continue
		}
		for _, d := range family.Domains {
			d = strings.ToLower(strings.TrimSpace(d))
			if d != "" {
				byDomain[d] = name
			}
		}
	}
	return &AliasTable{byDomain: byDomain}, nil
}

// LoadAliasTable reads a YAML alias file from disk, or returns the seeded
// table when path is empty.
func LoadAliasTable(path string) (*AliasTable, error) {
	if path == "" {
		return SeededAliasTable(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read alias table %s: %w", path, err)
	}
	return NewAliasTable(data)
}

// SeededAliasTable returns the table built from the embedded seed file. The
// seed is assumed well-formed; it is covered by tests.
func SeededAliasTable() *AliasTable {
	table, err := NewAliasTable(seededAliases)
	if err != nil {
		panic(fmt.Sprintf("embedded alias seed invalid: %v", err))
	}
	return table
}

func (t *AliasTable) Resolve(sender string) (string, bool) {
	if t == nil || sender == "" {
		return "", false
	}
	if name, ok := t.byDomain[sender]; ok {
		return name, true
	}
	// Match subdomains of a family domain: mail.us.jpmorgan.com.
	for domain, name := range t.byDomain {
		if strings.HasSuffix(sender, "."+domain) {
			return name, true
		}
	}
	return "", false
}
