// Package selector expands user-supplied build selectors (commit hashes, tags,
// versions) into candidate strings and matches stored trace metadata against them.
package selector

import (
	"context"
	"regexp"
	"strings"

	"tracecmp/internal/clients/git"
)

// commitShaped selectors never get a version affix variant.
var commitShaped = regexp.MustCompile(`^[0-9a-fA-F]{7,40}$`)

// Candidates expands selector into an ordered, de-duplicated list of
// non-empty candidate strings: the trimmed selector, its git resolution,
// then a v-prefixed or v-stripped variant unless it already looks like a hash.
func Candidates(ctx context.Context, selector string, resolver git.Resolver) []string {
	base := strings.TrimSpace(selector)
	if base == "" {
		return nil
	}
	if resolver == nil {
		resolver = git.NoopResolver
	}

	candidates := []string{base}

	// Unresolvable refs fall back to the literal selector.
	resolved := base
	if commit, ok := resolver.Resolve(ctx, base); ok && commit != "" {
		resolved = commit
	}
	candidates = append(candidates, resolved)

	switch {
	case commitShaped.MatchString(base):
	case strings.HasPrefix(base, "v") && len(base) > 1:
		candidates = append(candidates, base[1:])
	default:
		candidates = append(candidates, "v"+base)
	}

	return dedupe(candidates)
}

func dedupe(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// CommitMatches reports whether stored and candidate are case-insensitive
// prefixes of one another. Short hashes match on either side.
func CommitMatches(stored, candidate string) bool {
	if stored == "" || candidate == "" {
		return false
	}
	s := strings.ToLower(stored)
	c := strings.ToLower(candidate)
	return strings.HasPrefix(s, c) || strings.HasPrefix(c, s)
}

// VersionMatches compares versions case-insensitively, tolerating a leading
// "v" on either side.
func VersionMatches(stored, candidate string) bool {
	if stored == "" || candidate == "" {
		return false
	}
	s := strings.ToLower(stored)
	c := strings.ToLower(candidate)
	return s == c || "v"+s == c || (strings.HasPrefix(s, "v") && s[1:] == c)
}

// Matches is true when the stored commit or version matches any candidate.
func Matches(storedCommit, storedVersion string, candidates []string) bool {
	for _, candidate := range candidates {
		if CommitMatches(storedCommit, candidate) {
			return true
		}
		if VersionMatches(storedVersion, candidate) {
			return true
		}
	}
	return false
}

// Matcher is a selector whose candidates were expanded once up front.
type Matcher struct {
	Selector   string
	Candidates []string
}

// NewMatcher expands selector through resolver and returns a reusable Matcher.
func NewMatcher(ctx context.Context, selector string, resolver git.Resolver) *Matcher {
	return &Matcher{
		Selector:   selector,
		Candidates: Candidates(ctx, selector, resolver),
	}
}

// Match tests stored trace metadata against the expanded candidates.
func (m *Matcher) Match(storedCommit, storedVersion string) bool {
	return Matches(storedCommit, storedVersion, m.Candidates)
}
