package calcgraph

import (
	"regexp"
	"strings"

	"github.com/xuri/efp"

	"github.com/dealmodel/dealmodel/pkg/cellref"
)

// cellAddress matches a single A1 address with optional $ anchors.
var cellAddress = regexp.MustCompile(`^\$?[A-Za-z]{1,3}\$?[0-9]+$`)

// ParseFormulaDependencies extracts the cell addresses a formula reads.
// Unqualified addresses resolve against sheet; "Other!B2" and
// "'My Sheet'!B2" keep their own sheet. A range such as A1:B10 contributes
// only its two corner cells, not the full rectangle. Whole-column ranges,
// defined names and string literals are ignored. The result is
// de-duplicated in order of first appearance.
func ParseFormulaDependencies(formula, sheet string) []cellref.Reference {
	formula = strings.TrimSpace(formula)
	if formula == "" {
		return nil
	}

	ps := efp.ExcelParser()
	tokens := ps.Parse(formula)

	seen := make(map[string]bool)
	var deps []cellref.Reference
	add := func(ref cellref.Reference) {
		if seen[ref.ID()] {
			return
		}
		seen[ref.ID()] = true
		deps = append(deps, ref)
	}

	for _, token := range tokens {
		if token.TType != efp.TokenTypeOperand || token.TSubType != efp.TokenSubTypeRange {
			continue
		}
		for _, ref := range referencesInOperand(token.TValue, sheet) {
			add(ref)
		}
	}
	return deps
}

// referencesInOperand resolves one range operand ("A1", "Debt!B2",
// "'Cap Table'!A1:C9") into its cell references.
// Sheet names cannot contain ':', so splitting on it is safe; the second
// corner inherits the first corner's sheet unless it names its own.
func referencesInOperand(operand, sheet string) []cellref.Reference {
	partSheet := sheet
	var refs []cellref.Reference
	for _, part := range strings.Split(operand, ":") {
		if i := strings.LastIndex(part, "!"); i >= 0 {
			partSheet = cellref.UnquoteSheet(part[:i])
			part = part[i+1:]
		}
		if !cellAddress.MatchString(part) {
			continue
		}
		ref, err := cellref.Parse(partSheet, part)
		if err != nil {
			continue
		}
		refs = append(refs, ref)
	}
	return refs
}
