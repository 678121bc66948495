package classifier

import (
	"net"
	"net/url"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const maxActionSegments = 3

var (
	segmentSplitter = regexp.MustCompile(`[/\-_.]+`)
	versionMarker   = regexp.MustCompile(`^v\d+$`)
	numericSegment  = regexp.MustCompile(`^\d+$`)
	providerPrefix  = regexp.MustCompile(`^(api|www|app|my)[-_.]`)
	providerSuffix  = regexp.MustCompile(`[-_.](api|app|service|server|prod|dev|staging)$`)
)

var genericSegments = map[string]struct{}{
	"api": {}, "apis": {}, "x402": {}, "www": {}, "http": {}, "https": {},
	"com": {}, "app": {}, "io": {}, "net": {}, "org": {}, "xyz": {}, "dev": {},
	"rest": {}, "json": {}, "html": {}, "index": {}, "endpoint": {}, "endpoints": {},
	"paid": {}, "public": {}, "latest": {},
}

// hostingPlatforms are shared domains where the subdomain names the provider.
var hostingPlatforms = map[string]struct{}{
	"vercel": {}, "netlify": {}, "herokuapp": {}, "onrender": {}, "railway": {},
	"fly": {}, "workers": {}, "pages": {}, "replit": {}, "deno": {}, "github": {},
}

// GenerateDescriptionFromURL builds a readable description for resources
// published without one, e.g. "Token Price service by Acme Labs". It returns
// nil when the path carries no usable words.
func GenerateDescriptionFromURL(raw string) *string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return nil
	}

	action := actionPhrase(u.Path)
	if action == "" {
		return nil
	}

	var desc string
	if provider := providerName(u.Hostname()); provider != "" {
		desc = action + " service by " + provider
	} else {
		desc = action + " API"
	}
	return &desc
}

func actionPhrase(path string) string {
	words := make([]string, 0, maxActionSegments)
	for _, seg := range segmentSplitter.Split(strings.ToLower(path), -1) {
		if utf8.RuneCountInString(seg) <= 2 {
			continue
		}
		if _, generic := genericSegments[seg]; generic {
			continue
		}
		if versionMarker.MatchString(seg) || numericSegment.MatchString(seg) {
			continue
		}
		words = append(words, titleCase(seg))
		if len(words) == maxActionSegments {
			break
		}
	}
	return strings.Join(words, " ")
}

func providerName(host string) string {
	host = strings.TrimPrefix(strings.ToLower(host), "www.")
	if net.ParseIP(host) != nil {
		return ""
	}
	labels := strings.Split(host, ".")
	if len(labels) > 1 {
		labels = labels[:len(labels)-1]
	}
	for len(labels) > 1 {
		switch labels[0] {
		case "api", "www", "app", "my":
			labels = labels[1:]
			continue
		}
		break
	}
	if len(labels) == 0 {
		return ""
	}

	name := labels[len(labels)-1]
	if _, shared := hostingPlatforms[name]; shared && len(labels) > 1 {
		name = labels[0]
	}

	for {
		trimmed := providerSuffix.ReplaceAllString(providerPrefix.ReplaceAllString(name, ""), "")
		if trimmed == name {
			break
		}
		name = trimmed
	}

	if _, generic := genericSegments[name]; generic {
		return ""
	}

	words := strings.FieldsFunc(name, func(r rune) bool { return r == '-' || r == '_' || r == '.' })
	for i, w := range words {
		words[i] = titleCase(w)
	}
	return strings.Join(words, " ")
}

func titleCase(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}
