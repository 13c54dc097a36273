package http

import (
	"fmt"
	neturl "net/url"
	"strings"
)

// isRedirect reports whether status is in the 3xx range.
func isRedirect(status int) bool {
	return status >= 300 && status < 400
}

// ResolveLocation computes the next target of a redirect chain. A Location
// starting with a single "/" keeps the scheme, host and port of base; an
// absolute Location is returned verbatim; anything else is resolved
// relative to base.
func ResolveLocation(base, location string) (string, error) {
	bu, err := neturl.Parse(base)
	if err != nil {
		return "", errorf(KindInvalidArgument, "resolve location", "invalid base URL: %v", err)
	}
	if strings.HasPrefix(location, "/") && !strings.HasPrefix(location, "//") {
		return bu.Scheme + "://" + bu.Host + location, nil
	}
	lu, err := neturl.Parse(location)
	if err != nil {
		return "", errorf(KindInvalidArgument, "resolve location", "invalid Location %q: %v", location, err)
	}
	if lu.IsAbs() {
		return location, nil
	}
	return bu.ResolveReference(lu).String(), nil
}

// nextHop decides whether a reply ends the chain. It returns the derived
// request when the reply is a redirect that the hop budget allows.
func nextHop(req *Request, status int, location string) (*Request, error) {
	if !isRedirect(status) || location == "" || req.MaxRedirects <= 0 {
		return nil, nil
	}
	target, err := ResolveLocation(req.URL, location)
	if err != nil {
		return nil, err
	}
	if err := ValidateURL(target); err != nil {
		return nil, newError(KindInvalidArgument, "redirect", fmt.Errorf("%s: %w", target, err))
	}
	return req.derive(target), nil
}
