package bastion

import "strings"

// matchBranch checks if a branch rule pattern matches a branch name.
// Patterns are either a literal branch name, "*" (every branch), or a
// literal prefix followed by "*" (e.g., "release/*" matches "release/1.0").
func matchBranch(pattern, branch string) bool {
	if pattern == "*" {
		return true
	}
	if pattern == branch {
		return true
	}
	if strings.HasSuffix(pattern, "*") {
		prefix := strings.TrimSuffix(pattern, "*")
		return strings.HasPrefix(branch, prefix)
	}
	return false
}

// patternSpecificity ranks how precisely a pattern pins down branch
// names. Exact literals beat prefix globs, longer prefixes beat shorter
// ones, and "*" is the least specific. Used to pick one rule
// deterministically when several match the same branch; remaining ties
// break on lexical pattern order.
func patternSpecificity(pattern string) int {
	if pattern == "*" {
		return 0
	}
	if strings.HasSuffix(pattern, "*") {
		return 1 + len(strings.TrimSuffix(pattern, "*"))
	}
	// Exact literal: always more specific than any glob.
	return 1 << 16
}

// moreSpecific reports whether pattern a should be preferred over b.
func moreSpecific(a, b string) bool {
	sa, sb := patternSpecificity(a), patternSpecificity(b)
	if sa != sb {
		return sa > sb
	}
	return a < b
}
