package sites

import (
	"context"
	"net/url"
	"regexp"
	"strings"
	"sync"
)

// Adapter is the per-site inspection contract. IsSupported reports whether a
// URL belongs to the site. SameAs reports whether two URLs refer to the same
// post. Images enumerates the image URLs a post URL resolves to; adapters
// without an enumeration backend return nothing.
type Adapter interface {
	Site() Site
	Name() string
	IsSupported(rawURL string) bool
	SameAs(a, b string) bool
	Images(ctx context.Context, rawURL string) ([]string, error)
}

// Credentials carries per-site auth material. Adapters keep their own slice
// of it as session state.
type Credentials struct {
	FurAffinityCookieA    string
	FurAffinityCookieB    string
	E621Login             string
	E621APIKey            string
	WeasylAPIToken        string
	InkbunnyUsername      string
	InkbunnyPassword      string
	TwitterConsumerKey    string
	TwitterConsumerSecret string
}

// Set is the shared adapter list. Adapters may carry mutable session state,
// so all inspection happens under the set's lock; callers must finish with
// the adapters before performing chat-platform requests.
type Set struct {
	mu       sync.Mutex
	adapters []Adapter
}

// NewSet builds a set from explicit adapters, preserving order.
func NewSet(adapters ...Adapter) *Set {
	return &Set{adapters: adapters}
}

// NewDefaultSet builds the built-in adapter list in registration order.
func NewDefaultSet(creds Credentials) *Set {
	return NewSet(
		&patternAdapter{
			site:    E621,
			pattern: regexp.MustCompile(`(?i)e621\.net/(?:posts|post/show)/(\d+)`),
			user:    creds.E621Login,
			secret:  creds.E621APIKey,
		},
		&patternAdapter{
			site:    FurAffinity,
			pattern: regexp.MustCompile(`(?i)furaffinity\.net/(?:view|full)/(\d+)`),
			user:    creds.FurAffinityCookieA,
			secret:  creds.FurAffinityCookieB,
		},
		&patternAdapter{
			site:    Weasyl,
			pattern: regexp.MustCompile(`(?i)weasyl\.com/(?:view|~\w+/submissions)/(\d+)`),
			secret:  creds.WeasylAPIToken,
		},
		&patternAdapter{
			site:    Twitter,
			pattern: regexp.MustCompile(`(?i)(?:twitter|x)\.com/\w+/status(?:es)?/(\d+)`),
			user:    creds.TwitterConsumerKey,
			secret:  creds.TwitterConsumerSecret,
		},
		&patternAdapter{
			site:    Inkbunny,
			pattern: regexp.MustCompile(`(?i)inkbunny\.net/s/(\d+)`),
			user:    creds.InkbunnyUsername,
			secret:  creds.InkbunnyPassword,
		},
		&directAdapter{},
	)
}

// Inspect runs fn with the adapter list held under the set lock. The lock is
// released when fn returns, never across a platform call.
func (s *Set) Inspect(fn func(adapters []Adapter) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.adapters)
}

// patternAdapter recognizes post URLs by a single regexp whose first capture
// group is the site-local post id. Two URLs are the same post when their ids
// match.
type patternAdapter struct {
	site    Site
	pattern *regexp.Regexp
	user    string
	secret  string
}

func (a *patternAdapter) Site() Site   { return a.site }
func (a *patternAdapter) Name() string { return a.site.String() }

func (a *patternAdapter) IsSupported(rawURL string) bool {
	return a.pattern.MatchString(rawURL)
}

func (a *patternAdapter) postID(rawURL string) (string, bool) {
	m := a.pattern.FindStringSubmatch(rawURL)
	if len(m) < 2 {
		return "", false
	}
	return m[1], true
}

func (a *patternAdapter) SameAs(x, y string) bool {
	xi, xok := a.postID(x)
	yi, yok := a.postID(y)
	if xok && yok {
		return xi == yi
	}
	return x == y
}

// Images is unimplemented for pattern adapters; enumerating a post's files
// requires the site's scraping backend, which plugs in as its own Adapter.
func (a *patternAdapter) Images(context.Context, string) ([]string, error) {
	return nil, nil
}

// directAdapter recognizes plain links to image files and resolves them to
// themselves.
type directAdapter struct{}

var imageExt = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

func (directAdapter) Site() Site   { return Direct }
func (directAdapter) Name() string { return Direct.String() }

func (directAdapter) IsSupported(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	path := strings.ToLower(u.Path)
	if i := strings.LastIndex(path, "."); i >= 0 {
		return imageExt[path[i:]]
	}
	return false
}

func (directAdapter) SameAs(a, b string) bool { return a == b }

func (d directAdapter) Images(_ context.Context, rawURL string) ([]string, error) {
	if !d.IsSupported(rawURL) {
		return nil, nil
	}
	return []string{rawURL}, nil
}
