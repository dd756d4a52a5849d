package urlutil

import "net/url"

// Canonicalize strips the fragment from sourceUrl, producing the identity
// form used for VisitSet membership and all other dedup comparisons.
//
// Scheme and host are left untouched: they are compared case-insensitively
// by callers (classify.IsSameOrigin, the robots-cache origin key) but are
// never rewritten, so a URL's original casing survives into any emitted
// output.
//
// Properties:
//   - Pure: no state, no memory
//   - Idempotent: Canonicalize(Canonicalize(u)) == Canonicalize(u)
func Canonicalize(sourceUrl url.URL) url.URL {
	canonical := sourceUrl
	canonical.Fragment = ""
	canonical.RawFragment = ""
	return canonical
}
