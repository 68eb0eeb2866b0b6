package auth

import (
	"net/url"
	"regexp"
)

// Matcher decides whether an observed redirect URL is the sign-in callback.
type Matcher interface {
	Match(observed *url.URL) bool
}

// NewMatcher returns the callback matcher for a loopback origin.
//
// The strict matcher requires the loopback host and the exact callback
// path. The loose matcher treats callbackPattern as a regular expression
// searched anywhere in the URL; a pattern that does not compile is matched
// literally.
func NewMatcher(origin *url.URL, callbackPattern string, loose bool) Matcher {
	if !loose {
		return strictMatcher{host: origin.Host, path: callbackPattern}
	}
	re, err := regexp.Compile(callbackPattern)
	if err != nil {
		re = regexp.MustCompile(regexp.QuoteMeta(callbackPattern))
	}
	return looseMatcher{re: re}
}

type strictMatcher struct {
	host string
	path string
}

func (m strictMatcher) Match(observed *url.URL) bool {
	return observed.Scheme == "http" && observed.Host == m.host && observed.Path == m.path
}

type looseMatcher struct {
	re *regexp.Regexp
}

func (m looseMatcher) Match(observed *url.URL) bool {
	return m.re.MatchString(observed.String())
}
