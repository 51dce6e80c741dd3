// Package git resolves source-control references (tags, branches, short hashes)
// into abbreviated commit identifiers.
package git

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// ShortLength is the abbreviation length requested from git.
const ShortLength = 12

// Resolver turns an arbitrary ref into an abbreviated commit hash.
// ok is false when the ref does not name anything known.
type Resolver interface {
	Resolve(ctx context.Context, ref string) (commit string, ok bool)
}

// ResolverFunc adapts a plain function to the Resolver interface.
type ResolverFunc func(ctx context.Context, ref string) (string, bool)

// Resolve calls f.
func (f ResolverFunc) Resolve(ctx context.Context, ref string) (string, bool) {
	return f(ctx, ref)
}

// NoopResolver never resolves anything.
var NoopResolver Resolver = ResolverFunc(func(context.Context, string) (string, bool) {
	return "", false
})

// CLIResolver shells out to `git rev-parse` in a working tree.
type CLIResolver struct {
	dir    string
	binary string
	logger *slog.Logger
}

// NewCLIResolver creates a resolver running git in dir ("" = process working directory).
func NewCLIResolver(dir string, logger *slog.Logger) *CLIResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &CLIResolver{
		dir:    dir,
		binary: "git",
		logger: logger,
	}
}

func revParseArgs(ref string) []string {
	return []string{"rev-parse", fmt.Sprintf("--short=%d", ShortLength), ref}
}

// Resolve runs `git rev-parse --short=12 <ref>`. Any failure, including git
// being absent, is reported as not resolved.
func (r *CLIResolver) Resolve(ctx context.Context, ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	// git would read a leading dash as an option.
	if ref == "" || strings.HasPrefix(ref, "-") {
		return "", false
	}

	cmd := exec.CommandContext(ctx, r.binary, revParseArgs(ref)...)
	cmd.Dir = r.dir
	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	if err := cmd.Run(); err != nil {
		r.logger.Debug("git rev-parse did not resolve ref", "ref", ref, "error", err)
		return "", false
	}

	commit := strings.TrimSpace(stdout.String())
	if commit == "" {
		return "", false
	}
	return commit, true
}
