// Package umbrella maps free-form discipline names to canonical umbrella keys
// ("cyber security" -> "Cyber_Security") and back to display labels.
package umbrella

import (
	"sort"
	"strings"
	"unicode"

	"bprd-credits/internal/domain"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// DefaultKeys are the umbrellas known without configuration.
var DefaultKeys = []string{
	"Cyber_Security",
	"Forensic_Science",
	"Criminal_Law",
	"Investigation",
	"Police_Administration",
	"Traffic_Management",
	"Disaster_Management",
	"Public_Order",
	"Human_Rights",
	"Leadership",
}

// defaultAliases are alternate spellings seen in submitted discipline names.
var defaultAliases = map[string]string{
	"cybersecurity":             "Cyber_Security",
	"cyber_crime":               "Cyber_Security",
	"forensics":                 "Forensic_Science",
	"forensic":                  "Forensic_Science",
	"law":                       "Criminal_Law",
	"criminal_justice":          "Criminal_Law",
	"traffic":                   "Traffic_Management",
	"disaster_response":         "Disaster_Management",
	"leadership_and_management": "Leadership",
}

var fold = cases.Fold()

// Table is an immutable lookup of canonical keys and aliases.
type Table struct {
	keys   []string
	byFold map[string]string
}

// New builds a table from the defaults plus extra umbrella names, which may
// be given either as keys or as display labels.
func New(extra ...string) *Table {
	t := &Table{byFold: make(map[string]string)}
	for _, k := range DefaultKeys {
		t.add(k)
	}
	for _, e := range extra {
		if k := slug(e); k != "" {
			t.add(k)
		}
	}
	for alias, key := range defaultAliases {
		if _, taken := t.byFold[fold.String(alias)]; !taken {
			t.byFold[fold.String(alias)] = key
		}
	}
	sort.Strings(t.keys)
	return t
}

func (t *Table) add(key string) {
	f := fold.String(key)
	if _, ok := t.byFold[f]; ok {
		return
	}
	t.byFold[f] = key
	t.keys = append(t.keys, key)
}

// Canonicalize returns the canonical key for name or domain.ErrUnknownUmbrella.
func (t *Table) Canonicalize(name string) (string, error) {
	s := slug(name)
	if s == "" {
		return "", domain.ErrUnknownUmbrella
	}
	if k, ok := t.byFold[fold.String(s)]; ok {
		return k, nil
	}
	return "", domain.ErrUnknownUmbrella
}

// Keys returns the canonical keys in sorted order.
func (t *Table) Keys() []string {
	out := make([]string, len(t.keys))
	copy(out, t.keys)
	return out
}

// Display turns a key into its label: "Cyber_Security" -> "Cyber Security".
func Display(key string) string {
	return strings.ReplaceAll(key, "_", " ")
}

// slug applies NFKC, trims, and collapses runs of spaces, hyphens and
// underscores into a single underscore. Case is preserved.
func slug(name string) string {
	s := norm.NFKC.String(strings.TrimSpace(name))
	var b strings.Builder
	sep := false
	for _, r := range s {
		if unicode.IsSpace(r) || r == '-' || r == '_' {
			sep = true
			continue
		}
		if sep && b.Len() > 0 {
			b.WriteByte('_')
		}
		sep = false
		b.WriteRune(r)
	}
	return b.String()
}

var defaultTable = New()

// Keys returns the default table's keys.
func Keys() []string {
	return defaultTable.Keys()
}

// Canonicalize resolves name against the default table.
func Canonicalize(name string) (string, error) {
	return defaultTable.Canonicalize(name)
}
