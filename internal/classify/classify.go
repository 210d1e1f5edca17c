// Package classify implements the name classifier and suffix sanitizer
// described in spec.md §4.3: an ordered list of extended regular
// expressions that veto aliasing for compiler-generated artifacts, a
// symbol-type check for which nm type codes are ever aliasable, and byte
// sanitization for synthesized alias names.
package classify

import "regexp"

// baselinePatterns are always applied, even under "alias data all".
var baselinePatterns = []string{
	`^__cfi_.*$`,
	`^__pfx_.*$`,
}

// expandedPatterns are applied unless "alias data all" is set, in which
// case everything except baselinePatterns is suppressed.
var expandedPatterns = []string{
	`^_*TRACE_SYSTEM.*$`,
	`^__already_done\.[0-9]+$`,
	`^___tp_str\.[0-9]+$`,
	`^___done\.[0-9]+$`,
	`^__print_once\.[0-9]+$`,
	`^_rs\.[0-9]+$`,
	`^__compound_literal\.[0-9]+$`,
	`^___once_key\.[0-9]+$`,
	`^__func__\.[0-9]+$`,
	`^__msg\.[0-9]+$`,
	`^CSWTCH\.[0-9]+$`,
	`^__flags\.[0-9]+$`,
	`^__wkey.*$`,
	`^__mkey.*$`,
	`^__key.*$`,
}

// Classifier holds the filter list compiled exactly once per run; spec.md
// §9 calls out regex recompilation inside a hot loop as a correctness bug
// in prior source revisions, not merely a performance one, so construction
// and matching are deliberately split.
type Classifier struct {
	patterns []*regexp.Regexp
}

// New compiles the baseline filter list, plus the expanded list unless
// aliasDataAll suppresses it. Each pattern is extended POSIX ERE, matched
// with Go's CompilePOSIX (leftmost-longest semantics, the closest stdlib
// equivalent to the grep -E dialect spec.md §6 specifies these patterns
// in); a RegexError is fatal per spec.md §7.
func New(aliasDataAll bool) (*Classifier, error) {
	list := append([]string{}, baselinePatterns...)
	if !aliasDataAll {
		list = append(list, expandedPatterns...)
	}

	c := &Classifier{patterns: make([]*regexp.Regexp, 0, len(list))}
	for _, p := range list {
		re, err := regexp.CompilePOSIX(p)
		if err != nil {
			return nil, &RegexError{Pattern: p, Err: err}
		}
		c.patterns = append(c.patterns, re)
	}
	return c, nil
}

// RegexError wraps a filter pattern compilation failure.
type RegexError struct {
	Pattern string
	Err     error
}

func (e *RegexError) Error() string {
	return "compile filter pattern " + e.Pattern + ": " + e.Err.Error()
}

func (e *RegexError) Unwrap() error { return e.Err }

// Vetoed reports whether name matches any enabled "never alias" pattern.
func (c *Classifier) Vetoed(name string) bool {
	for _, re := range c.patterns {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

// AliasableType reports whether typ is eligible for aliasing at all, given
// whether data-symbol aliasing is enabled. Text symbols (t/T) are always
// aliasable; data symbols (b/B/d/D/r/R) only when aliasData is true; every
// other type code is never aliasable.
func AliasableType(typ byte, aliasData bool) bool {
	switch typ {
	case 't', 'T':
		return true
	case 'b', 'B', 'd', 'D', 'r', 'R':
		return aliasData
	default:
		return false
	}
}

// Sanitize replaces every byte in name that is neither alphanumeric nor
// '@' with '_', so downstream kallsyms consumers treat the alias as a
// single identifier token.
func Sanitize(name string) string {
	b := []byte(name)
	for i, c := range b {
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '@':
		default:
			b[i] = '_'
		}
	}
	return string(b)
}
