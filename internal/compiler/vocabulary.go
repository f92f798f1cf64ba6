package compiler

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// departmentAliases maps lowercase spellings onto canonical department
// names. Acronyms are only recognised when written in capitals, so the
// pronoun "it" never reads as a department.
var departmentAliases = map[string]string{
	"marketing":              "Marketing",
	"legal":                  "Legal",
	"finance":                "Finance",
	"procurement":            "Procurement",
	"operations":             "Operations",
	"engineering":            "Engineering",
	"sales":                  "Sales",
	"executive":              "Executive",
	"human resources":        "HR",
	"information technology": "IT",
	"hr":                     "HR",
	"it":                     "IT",
}

var acronyms = map[string]bool{"it": true, "hr": true}

var categories = []string{
	"office supplies",
	"legal services",
	"professional services",
	"consulting",
	"software",
	"hardware",
	"travel",
	"utilities",
	"equipment",
	"subscriptions",
	"training",
}

func titleCase(s string) string {
	return cases.Title(language.English).String(s)
}

// canonicalDepartment returns the canonical name for a department spelling
// and whether it is known.
func canonicalDepartment(s string) (string, bool) {
	name, ok := departmentAliases[strings.ToLower(strings.TrimSpace(s))]
	return name, ok
}

// asciiLower lowercases A-Z only, so byte offsets in the result line up
// with the original text.
func asciiLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// teamID derives a team id from the words a rule author used for it, e.g.
// "Legal" becomes "legal-team".
func teamID(name string) string {
	name = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(name)), " team")
	return strings.Join(strings.Fields(name), "-") + "-team"
}
