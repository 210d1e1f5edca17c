// Package version holds build version metadata and resolves which
// historical alias-suffix spelling a run should produce, the way the
// teacher's internal/update package compares release tags with
// golang.org/x/mod/semver to decide whether a newer build is available.
// Here the same comparison decides backward compatibility with older
// build systems that expect one of kas_alias's earlier fallback spellings
// instead of deciding whether to offer a download.
package version

import (
	"fmt"

	"golang.org/x/mod/semver"
)

// Version is stamped at build time via -ldflags "-X .../version.Version=...".
var Version = "devel"

// SuffixForm names one of the three historical fallback alias spellings
// spec.md §4.3 calls out: "<name>__alias__<S>", "<name>@<S>", "<name>__<S>".
type SuffixForm string

const (
	FormAlias  SuffixForm = "alias"  // <name>__alias__<S>, the default
	FormAt     SuffixForm = "at"     // <name>@<S>
	FormLegacy SuffixForm = "legacy" // <name>__<S>
)

// compatAt and compatAlias are the version boundaries §4.8 of
// SPEC_FULL.md assigns to each historical spelling.
const (
	compatAt    = "v0.2.0"
	compatAlias = "v0.3.0"
)

// ParseSuffixForm validates an explicit -suffix-form flag value.
func ParseSuffixForm(s string) (SuffixForm, error) {
	switch SuffixForm(s) {
	case FormAlias, FormAt, FormLegacy:
		return SuffixForm(s), nil
	default:
		return "", fmt.Errorf("unknown suffix form %q (want alias, at, or legacy)", s)
	}
}

// ResolveSuffixForm picks the fallback alias spelling for this run.
// explicit, if non-empty, wins outright. Otherwise, compat (a semver
// string identifying the build system's minimum supported kas_alias
// version) selects among the three historical spellings; an empty compat
// resolves to the current default, FormAlias.
func ResolveSuffixForm(compat, explicit string) (SuffixForm, error) {
	if explicit != "" {
		return ParseSuffixForm(explicit)
	}
	if compat == "" {
		return FormAlias, nil
	}
	if !semver.IsValid(compat) {
		return "", fmt.Errorf("invalid -compat version %q", compat)
	}
	switch {
	case semver.Compare(compat, compatAt) < 0:
		return FormLegacy, nil
	case semver.Compare(compat, compatAlias) < 0:
		return FormAt, nil
	default:
		return FormAlias, nil
	}
}
