package report

import (
	"fmt"
	"sort"
	"strings"
)

// FormatCSV is the only report format the enrichment pipeline understands.
const FormatCSV = "CSV"

// categoriesByKind is the closed vocabulary of requestable report kinds,
// mapping the user-facing names to the vendor-side category tags.
var categoriesByKind = map[string]string{
	"version":                           "VERSION",
	"scans":                             "CODE_LOCATIONS",
	"components":                        "COMPONENTS",
	"vulnerabilities":                   "SECURITY",
	"source":                            "FILES",
	"cryptography":                      "CRYPTO_ALGORITHMS",
	"license_terms":                     "LICENSE_TERM_FULFILLMENT",
	"component_additional_fields":       "COMPONENT_ADDITIONAL_FIELDS",
	"project_version_additional_fields": "PROJECT_VERSION_ADDITIONAL_FIELDS",
	"vulnerability_matches":             "VULNERABILITY_MATCH_INFO",
}

// ValidKinds returns the known report kinds in sorted order.
func ValidKinds() []string {
	kinds := make([]string, 0, len(categoriesByKind))
	for kind := range categoriesByKind {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

// Categories validates the requested kinds against the known vocabulary and
// maps them to vendor category tags. An empty list requests all kinds. Any
// unrecognized kind rejects the whole request, naming every offending kind
// and the valid set, before any network call is made.
func Categories(kinds []string) ([]string, error) {
	if len(kinds) == 0 {
		kinds = ValidKinds()
	}

	var unknown []string
	categories := make([]string, 0, len(kinds))
	for _, kind := range kinds {
		category, ok := categoriesByKind[kind]
		if !ok {
			unknown = append(unknown, kind)
			continue
		}
		categories = append(categories, category)
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("unknown report kind(s): %s (valid kinds: %s)",
			strings.Join(unknown, ", "), strings.Join(ValidKinds(), ", "))
	}
	return categories, nil
}
