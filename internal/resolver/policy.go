// ABOUTME: Source policy gate evaluated before any resolution work
// ABOUTME: Block patterns always win; a non-empty allow list must match
package resolver

import (
	"log"
	"net/url"
	"regexp"
	"strings"

	"github.com/samber/lo"

	"github.com/resonix-audio/resonix-go/internal/failure"
)

// Policy decides which identifiers may be played
type Policy struct {
	allow []*regexp.Regexp
	block []*regexp.Regexp
}

// NewPolicy compiles the allow and block patterns. Invalid patterns are
// logged and skipped.
func NewPolicy(allowed, blocked []string) *Policy {
	return &Policy{
		allow: compilePatterns("allowed", allowed),
		block: compilePatterns("blocked", blocked),
	}
}

func compilePatterns(list string, patterns []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			log.Printf("Ignoring invalid %s pattern %q: %v", list, p, err)
			continue
		}
		out = append(out, re)
	}
	return out
}

// Allowed reports whether identifier passes the policy. Each pattern is
// tested against the full identifier and its lower-cased host.
func (p *Policy) Allowed(identifier string) bool {
	if p == nil {
		return true
	}
	host := Host(identifier)
	matches := func(re *regexp.Regexp) bool {
		return re.MatchString(identifier) || (host != "" && re.MatchString(host))
	}

	if lo.SomeBy(p.block, matches) {
		return false
	}
	if len(p.allow) == 0 {
		return true
	}
	return lo.SomeBy(p.allow, matches)
}

// Check returns a PolicyRejection when identifier is not allowed
func (p *Policy) Check(identifier string) error {
	if p.Allowed(identifier) {
		return nil
	}
	return failure.Newf(failure.PolicyRejection, "policy", "source not allowed: %s", identifier)
}

// Host returns the lower-cased host of identifier, or "" when it has none
func Host(identifier string) string {
	u, err := url.Parse(identifier)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
