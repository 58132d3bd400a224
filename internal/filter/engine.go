// Package filter implements the document type allowlist.
package filter

import (
	"fmt"
	"path"
	"sort"
	"strings"
)

// RuleKind is the shape of a single allowlist entry.
type RuleKind int

// Allowlist rule kinds.
const (
	RuleExtension RuleKind = iota
	RuleMIME
	RuleMIMEPrefix
)

// Rule is one parsed allowlist entry. Value is lower-cased; extensions keep
// their leading dot and prefixes drop the trailing "/*".
type Rule struct {
	Kind  RuleKind
	Value string
}

// Allowlist decides whether a document may be attached to a submission.
// The zero value allows everything.
type Allowlist struct {
	allowAll bool
	rules    []Rule
}

// New parses a comma-separated allowlist. "*" or an empty string allows all
// types. Entries starting with "." or without "/" are extensions, entries
// ending in "/*" are MIME wildcards and anything else is an exact MIME type.
func New(spec string) *Allowlist {
	spec = strings.TrimSpace(spec)
	if spec == "" || spec == "*" {
		return &Allowlist{allowAll: true}
	}

	a := &Allowlist{}
	seen := make(map[Rule]bool)
	for _, part := range strings.Split(spec, ",") {
		r, ok := parseRule(part)
		if !ok || seen[r] {
			continue
		}
		seen[r] = true
		a.rules = append(a.rules, r)
	}
	if len(a.rules) == 0 {
		a.allowAll = true
	}
	return a
}

func parseRule(s string) (Rule, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch {
	case s == "" || s == "*" || s == ".":
		return Rule{}, false
	case strings.HasSuffix(s, "/*"):
		return Rule{Kind: RuleMIMEPrefix, Value: strings.TrimSuffix(s, "/*")}, true
	case strings.Contains(s, "/"):
		return Rule{Kind: RuleMIME, Value: s}, true
	case strings.HasPrefix(s, "."):
		return Rule{Kind: RuleExtension, Value: s}, true
	default:
		return Rule{Kind: RuleExtension, Value: "." + s}, true
	}
}

// AllowsAll reports whether every type passes.
func (a *Allowlist) AllowsAll() bool {
	return a == nil || a.allowAll
}

// Rules returns a copy of the parsed rules.
func (a *Allowlist) Rules() []Rule {
	if a == nil {
		return nil
	}
	return append([]Rule(nil), a.rules...)
}

// Validate checks a document by file name and MIME type. Any matching rule
// accepts it. On rejection the returned reason names the file and the
// accepted types.
func (a *Allowlist) Validate(fileName, mimeType string) (bool, string) {
	if a.AllowsAll() {
		return true, ""
	}

	ext := strings.ToLower(path.Ext(fileName))
	mime := strings.ToLower(strings.TrimSpace(mimeType))

	for _, r := range a.rules {
		if matchesRule(r, ext, mime) {
			return true, ""
		}
	}
	return false, a.rejection(fileName, mimeType)
}

func matchesRule(r Rule, ext, mime string) bool {
	switch r.Kind {
	case RuleExtension:
		return ext != "" && ext == r.Value
	case RuleMIME:
		return mime != "" && mime == r.Value
	case RuleMIMEPrefix:
		return mime != "" && strings.HasPrefix(mime, r.Value+"/")
	}
	return false
}

func (a *Allowlist) rejection(fileName, mimeType string) string {
	var info []string
	if fileName != "" {
		info = append(info, "file: "+fileName)
	}
	if mimeType != "" {
		info = append(info, "type: "+mimeType)
	}
	subject := "unknown file"
	if len(info) > 0 {
		subject = strings.Join(info, ", ")
	}
	return fmt.Sprintf("Unsupported file type (%s).\nAllowed types:\n%s", subject, a.Description())
}

// Description lists the accepted types for user prompts.
func (a *Allowlist) Description() string {
	if a.AllowsAll() {
		return "all file types"
	}

	var exts, mimes []string
	for _, r := range a.rules {
		switch r.Kind {
		case RuleExtension:
			exts = append(exts, r.Value)
		case RuleMIME:
			mimes = append(mimes, strings.TrimPrefix(r.Value, "application/"))
		case RuleMIMEPrefix:
			mimes = append(mimes, r.Value+"/*")
		}
	}
	sort.Strings(exts)
	sort.Strings(mimes)

	var lines []string
	if len(exts) > 0 {
		lines = append(lines, "• extensions: "+strings.Join(exts, ", "))
	}
	if len(mimes) > 0 {
		lines = append(lines, "• types: "+strings.Join(mimes, ", "))
	}
	return strings.Join(lines, "\n")
}
