package duty

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// defaultCountryAliases maps common country spellings onto ISO 3166 alpha-2 codes
var defaultCountryAliases = map[string]string{
	"UNITED STATES":            "US",
	"UNITED STATES OF AMERICA": "US",
	"USA":                      "US",
	"U.S.":                     "US",
	"U.S.A.":                   "US",
	"AMERICA":                  "US",
	"CANADA":                   "CA",
	"CAN":                      "CA",
	"MEXICO":                   "MX",
	"MÉXICO":                   "MX",
	"MEX":                      "MX",
}

// seedAgreements is the built-in agreement set. Further agreements and preference
// programs are supplied through LoadFTATable.
var seedAgreements = []AgreementConfig{
	{Name: "USMCA", Members: []string{"US", "CA", "MX"}},
}

// AgreementConfig describes one trade agreement. Members form a regional agreement
// (every ordered pair of distinct members qualifies); Pairs lists bilateral pairs.
type AgreementConfig struct {
	Name    string     `yaml:"name"`
	Members []string   `yaml:"members,omitempty"`
	Pairs   [][]string `yaml:"pairs,omitempty"`
}

// FTAFile is the YAML layout read by LoadFTATable
type FTAFile struct {
	Aliases    map[string]string `yaml:"aliases"`
	Agreements []AgreementConfig `yaml:"agreements"`
}

// FTATable maps origin/destination country pairs to the agreement that covers them.
// It is safe for concurrent use.
type FTATable struct {
	mu         sync.RWMutex
	agreements map[string]string
	aliases    map[string]string
}

// NewFTATable returns a table holding the seed agreements and default aliases
func NewFTATable() *FTATable {
	t := &FTATable{
		agreements: make(map[string]string),
		aliases:    make(map[string]string, len(defaultCountryAliases)),
	}
	for k, v := range defaultCountryAliases {
		t.aliases[k] = v
	}
	for _, a := range seedAgreements {
		t.addAgreement(a)
	}
	return t
}

// LoadFTATable reads agreements and aliases from a YAML file and merges them onto
// the seed table. An empty path returns the seed table.
func LoadFTATable(path string) (*FTATable, error) {
	t := NewFTATable()
	if path == "" {
		return t, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read FTA table %s: %w", path, err)
	}

	var file FTAFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse FTA table %s: %w", path, err)
	}
	if err := t.Merge(file); err != nil {
		return nil, fmt.Errorf("invalid FTA table %s: %w", path, err)
	}
	return t, nil
}

// Merge adds the aliases and agreements of file to the table
func (t *FTATable) Merge(file FTAFile) error {
	for _, a := range file.Agreements {
		if strings.TrimSpace(a.Name) == "" {
			return fmt.Errorf("agreement without a name")
		}
		if len(a.Members) == 0 && len(a.Pairs) == 0 {
			return fmt.Errorf("agreement %s has no members or pairs", a.Name)
		}
		for _, p := range a.Pairs {
			if len(p) != 2 {
				return fmt.Errorf("agreement %s: pair %v must name exactly two countries", a.Name, p)
			}
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for alias, code := range file.Aliases {
		t.aliases[strings.ToUpper(strings.TrimSpace(alias))] = strings.ToUpper(strings.TrimSpace(code))
	}
	for _, a := range file.Agreements {
		t.addAgreement(a)
	}
	return nil
}

// Add registers a bilateral agreement in both directions
func (t *FTATable) Add(countryA, countryB, name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.addAgreement(AgreementConfig{Name: name, Pairs: [][]string{{countryA, countryB}}})
}

// addAgreement expects t.mu to be held or the table to be unpublished
func (t *FTATable) addAgreement(a AgreementConfig) {
	for i, x := range a.Members {
		for j, y := range a.Members {
			if i != j {
				t.agreements[pairKey(t.normalize(x), t.normalize(y))] = a.Name
			}
		}
	}
	for _, p := range a.Pairs {
		x, y := t.normalize(p[0]), t.normalize(p[1])
		t.agreements[pairKey(x, y)] = a.Name
		t.agreements[pairKey(y, x)] = a.Name
	}
}

// Lookup returns the agreement covering goods moving from origin to destination.
// Country names are normalized first.
func (t *FTATable) Lookup(origin, destination string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	o, d := t.normalize(origin), t.normalize(destination)
	if o == "" || d == "" || o == d {
		return "", false
	}
	name, ok := t.agreements[pairKey(o, d)]
	return name, ok
}

// NormalizeCountry maps a country name or code onto its two letter code using the
// table's alias set. Unknown values are returned upper-cased.
func (t *FTATable) NormalizeCountry(s string) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.normalize(s)
}

func (t *FTATable) normalize(s string) string {
	key := strings.ToUpper(strings.Join(strings.Fields(s), " "))
	if code, ok := t.aliases[key]; ok {
		return code
	}
	return key
}

func pairKey(origin, destination string) string {
	return origin + "-" + destination
}
