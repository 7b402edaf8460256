package validate

import (
	"regexp"
	"strings"
)

// matchGlob matches slash-separated paths against globs supporting `*`
// (within a segment), `?`, and `**` (across segments).
func matchGlob(pattern, path string) bool {
	re, err := globRegexp(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(path)
}

func globRegexp(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("^")
	segments := strings.Split(pattern, "/")
	for i, seg := range segments {
		if seg == "**" {
			if i == len(segments)-1 {
				b.WriteString(".*")
			} else {
				// `**/` also matches zero directories.
				b.WriteString("(.*/)?")
			}
			continue
		}
		for _, r := range seg {
			switch r {
			case '*':
				b.WriteString("[^/]*")
			case '?':
				b.WriteString("[^/]")
			default:
				b.WriteString(regexp.QuoteMeta(string(r)))
			}
		}
		if i != len(segments)-1 {
			b.WriteString("/")
		}
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}
