package urlset

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Set is the AlreadySeen set: URLs persisted by earlier runs. Membership is
// checked on normalized URLs so cosmetic differences do not defeat dedup.
type Set struct {
	urls map[string]struct{}
	mu   sync.RWMutex
}

func New(urls ...string) *Set {
	s := &Set{urls: make(map[string]struct{}, len(urls))}
	for _, u := range urls {
		s.Add(u)
	}
	return s
}

// Add reports whether the URL was not in the set before.
func (s *Set) Add(urlStr string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	normalized := NormalizeURL(urlStr)
	if _, ok := s.urls[normalized]; ok {
		return false
	}
	s.urls[normalized] = struct{}{}
	return true
}

func (s *Set) Has(urlStr string) bool {
	if s == nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.urls[NormalizeURL(urlStr)]
	return ok
}

func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.urls)
}

// Items returns the normalized URLs in lexical order.
func (s *Set) Items() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]string, 0, len(s.urls))
	for u := range s.urls {
		items = append(items, u)
	}
	sort.Strings(items)
	return items
}

func NormalizeURL(urlStr string) string {
	parsed, err := url.Parse(strings.TrimSpace(urlStr))
	if err != nil {
		return urlStr
	}

	parsed.Fragment = ""
	parsed.Host = strings.TrimPrefix(strings.ToLower(parsed.Host), "www.")

	if parsed.Scheme == "" {
		parsed.Scheme = "https"
	}

	return parsed.String()
}

// Resolve turns a possibly relative href into an absolute URL against base.
func Resolve(base *url.URL, href string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}

// PageURL sets the page query parameter on the listing URL.
func PageURL(listingURL, param string, page int) (string, error) {
	u, err := url.Parse(listingURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set(param, strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
