// Package matcher detects watched people in normalized page text.
package matcher

import (
	"regexp"
	"strings"

	"github.com/JakeFAU/gazette-watch/internal/gazette"
)

// wordClass is the set of characters that form a word. It is Unicode-aware so
// accented names anchor the same way ASCII ones do.
const wordClass = `\p{L}\p{N}_`

var lineBreaks = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

// Result reports which identifier types matched on a page.
type Result struct {
	Name         bool
	Registration bool
	TaxID        bool
}

// Any reports whether at least one identifier matched.
func (r Result) Any() bool {
	return r.Name || r.Registration || r.TaxID
}

// Normalize lower-cases text and collapses line breaks into single spaces.
func Normalize(text string) string {
	return lineBreaks.Replace(strings.ToLower(text))
}

// Match checks a watched person against text already passed through Normalize.
func Match(person gazette.WatchedPerson, pageText string) Result {
	return Result{
		Name:         MatchName(person.FullName, pageText),
		Registration: containsIdentifier(pageText, person.RegistrationNumber),
		TaxID:        containsIdentifier(pageText, person.TaxID),
	}
}

// MatchName reports whether every token of fullName appears in text as a whole
// word, in order, with any (possibly empty) span between consecutive tokens.
func MatchName(fullName, text string) bool {
	re, err := NamePattern(fullName)
	if err != nil || re == nil {
		return false
	}
	return re.MatchString(text)
}

// NamePattern compiles the ordered whole-word pattern for a name. It returns a
// nil pattern for names without tokens.
func NamePattern(fullName string) (*regexp.Regexp, error) {
	tokens := strings.Fields(fullName)
	if len(tokens) == 0 {
		return nil, nil
	}
	quoted := make([]string, len(tokens))
	for i, tok := range tokens {
		quoted[i] = regexp.QuoteMeta(tok)
	}
	// Each token sits between non-word characters (or text edges). Adjacent
	// tokens may share the single separator between them.
	sep := `(?:[^` + wordClass + `]|[^` + wordClass + `].*?[^` + wordClass + `])`
	expr := `(?is)(?:^|[^` + wordClass + `])` +
		strings.Join(quoted, sep) +
		`(?:[^` + wordClass + `]|$)`
	return regexp.Compile(expr)
}

func containsIdentifier(text, id string) bool {
	if strings.TrimSpace(id) == "" {
		return false
	}
	return strings.Contains(text, id)
}
