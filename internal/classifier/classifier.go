// Package classifier assigns a service category, tags and a confidence value
// to an x402 resource using three deterministic signal layers: a domain table,
// URL path patterns and weighted keywords.
package classifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"x402index/internal/urlnorm"
)

const (
	domainScore = 100
	pathScore   = 50

	domainConfidence = 0.95
	pathConfidence   = 0.8
	keywordCeiling   = 0.6
	competitorFactor = 0.1
)

// Resource is the input of a classification.
type Resource struct {
	URL          string
	Description  string
	ProviderName string
	Metadata     json.RawMessage
}

// Result is the output of a classification. Category is nil when no signal
// matched; there is no catch-all category.
type Result struct {
	Category   *string
	Tags       []string
	Confidence float64
}

type compiledCategory struct {
	def      CategoryDef
	patterns []*regexp.Regexp
	keywords []string
}

type compiledTag struct {
	name    string
	pattern *regexp.Regexp
}

// Classifier evaluates resources against immutable, precompiled tables.
type Classifier struct {
	categories []compiledCategory
	index      map[string]int
	domains    map[string]string
	tags       []compiledTag
}

// New compiles the given tables.
func New(tables Tables) (*Classifier, error) {
	c := &Classifier{
		categories: make([]compiledCategory, 0, len(tables.Categories)),
		index:      make(map[string]int, len(tables.Categories)),
		domains:    make(map[string]string, len(tables.Domains)),
		tags:       make([]compiledTag, 0, len(tables.Tags)),
	}

	for _, def := range tables.Categories {
		if _, dup := c.index[def.Slug]; dup {
			return nil, fmt.Errorf("duplicate category %q", def.Slug)
		}
		cc := compiledCategory{def: def}
		for _, p := range def.PathPatterns {
			re, err := regexp.Compile(p)
			if err != nil {
				return nil, fmt.Errorf("category %s: compile pattern %q: %w", def.Slug, p, err)
			}
			cc.patterns = append(cc.patterns, re)
		}
		for _, kw := range def.Keywords {
			cc.keywords = append(cc.keywords, strings.ToLower(kw))
		}
		c.index[def.Slug] = len(c.categories)
		c.categories = append(c.categories, cc)
	}

	for host, slug := range tables.Domains {
		if _, ok := c.index[slug]; !ok {
			return nil, fmt.Errorf("domain %s maps to unknown category %q", host, slug)
		}
		c.domains[strings.TrimPrefix(strings.ToLower(host), "www.")] = slug
	}

	for _, tag := range tables.Tags {
		re, err := regexp.Compile(tag.Pattern)
		if err != nil {
			return nil, fmt.Errorf("tag %s: compile pattern: %w", tag.Name, err)
		}
		c.tags = append(c.tags, compiledTag{name: tag.Name, pattern: re})
	}

	return c, nil
}

// Default returns a classifier over DefaultTables.
func Default() *Classifier {
	c, err := New(DefaultTables())
	if err != nil {
		panic("classifier: invalid default tables: " + err.Error())
	}
	return c
}

// Taxonomy lists the configured categories in declaration order.
func (c *Classifier) Taxonomy() []CategoryDef {
	out := make([]CategoryDef, 0, len(c.categories))
	for _, cc := range c.categories {
		out = append(out, cc.def)
	}
	return out
}

// Classify scores every category and picks the highest. Scores from the three
// layers add up per category; equal top scores resolve to the category
// declared first.
func (c *Classifier) Classify(res Resource) Result {
	scores := make([]int, len(c.categories))

	domainMatched := false
	host := strings.TrimPrefix(urlnorm.Host(res.URL), "www.")
	if slug, ok := c.domains[host]; ok && host != "" {
		scores[c.index[slug]] += domainScore
		domainMatched = true
	}

	if pq := pathAndQuery(res.URL); pq != "" {
		for i, cc := range c.categories {
			for _, re := range cc.patterns {
				if re.MatchString(pq) {
					scores[i] += pathScore
					break
				}
			}
		}
	}

	text := analyzedText(res)
	for i, cc := range c.categories {
		for _, kw := range cc.keywords {
			if kw != "" && strings.Contains(text, kw) {
				scores[i] += utf8.RuneCountInString(kw)
			}
		}
	}

	best, bestScore, competing := -1, 0, 0
	for i, s := range scores {
		if s > 0 {
			competing++
		}
		if s > bestScore {
			best, bestScore = i, s
		}
	}

	result := Result{Tags: c.tagsFor(text)}
	if best < 0 {
		return result
	}

	slug := c.categories[best].def.Slug
	result.Category = &slug
	result.Confidence = confidence(domainMatched, bestScore, competing)
	return result
}

func confidence(domainMatched bool, bestScore, competing int) float64 {
	switch {
	case domainMatched:
		return domainConfidence
	case bestScore >= pathScore:
		return pathConfidence
	case bestScore > 0:
		base := math.Min(keywordCeiling, float64(bestScore)/pathScore)
		penalty := 1 - competitorFactor*float64(competing-1)
		return math.Max(0, base*penalty)
	default:
		return 0
	}
}

func (c *Classifier) tagsFor(text string) []string {
	tags := make([]string, 0, len(c.tags))
	for _, t := range c.tags {
		if t.pattern.MatchString(text) {
			tags = append(tags, t.name)
		}
	}
	return tags
}

func analyzedText(res Resource) string {
	meta := "{}"
	if trimmed := bytes.TrimSpace(res.Metadata); len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
		var buf bytes.Buffer
		if err := json.Compact(&buf, trimmed); err == nil {
			meta = buf.String()
		} else {
			meta = string(trimmed)
		}
	}
	return strings.ToLower(strings.Join([]string{res.Description, res.URL, res.ProviderName, meta}, " "))
}

func pathAndQuery(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	pq := u.EscapedPath()
	if u.RawQuery != "" {
		pq += "?" + u.RawQuery
	}
	return pq
}
