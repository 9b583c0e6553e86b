package resolver

import (
	"context"
	"fmt"
	"sort"

	"github.com/mymmrac/telego"

	"github.com/vulpo-bot/vulpo/pkg/fuzzysearch"
	"github.com/vulpo-bot/vulpo/pkg/imghash"
	"github.com/vulpo-bot/vulpo/pkg/logger"
	"github.com/vulpo-bot/vulpo/pkg/sites"
	"github.com/vulpo-bot/vulpo/pkg/telegram"
)

const (
	// MaxSourceDistance is the largest hash distance still treated as the
	// same image.
	MaxSourceDistance = 3

	// NoisySourceCount is the twitter match count at which a result set is
	// considered re-post noise.
	NoisySourceCount = 4
)

// Path selects the channel or group variant of the pipeline.
type Path int

const (
	PathChannel Path = iota
	PathGroup
)

// No-action reasons.
const (
	ReasonNoPhoto     = "no_photo"
	ReasonNoMatches   = "no_matches"
	ReasonLinkPresent = "link_present"
	ReasonSimilarLink = "similar_link"
	ReasonAlbumDup    = "album_dup"
	ReasonNoisy       = "noisy"
)

// NoActionError reports that the pipeline deliberately produced nothing.
// It is a terminal success for the calling job, not a failure.
type NoActionError struct {
	Reason string
}

func (e *NoActionError) Error() string {
	return "no action: " + e.Reason
}

func noAction(reason string) error {
	return &NoActionError{Reason: reason}
}

// HashCache persists perceptual hashes per platform file.
type HashCache interface {
	CachedHash(ctx context.Context, fileUniqueID string) (*int64, error)
	SaveHash(ctx context.Context, fileUniqueID string, hash int64) error
}

// UserOrder supplies a user's preferred site ordering.
type UserOrder interface {
	UserSiteOrder(ctx context.Context, userID int64) ([]sites.Site, error)
}

// Searcher queries the external reverse search service.
type Searcher interface {
	SearchHash(ctx context.Context, hash int64, distance int) ([]fuzzysearch.Match, error)
}

// Downloader fetches platform file contents.
type Downloader interface {
	DownloadPhoto(ctx context.Context, fileID string) ([]byte, error)
}

// Fetcher downloads confirmation images from the web.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// AlbumMemory remembers which sources an album already displayed.
type AlbumMemory interface {
	AlreadyHadSource(ctx context.Context, mediaGroupID string, urls []string) (bool, error)
}

// Options wires the resolver's collaborators.
type Options struct {
	HashCache HashCache
	UserOrder UserOrder
	Searcher  Searcher
	Files     Downloader
	Fetcher   Fetcher
	Sites     *sites.Set
	Albums    AlbumMemory
}

// Resolver derives an ordered list of probable source URLs for a message's
// photo. It never writes to the chat platform.
type Resolver struct {
	cache  HashCache
	users  UserOrder
	search Searcher
	files  Downloader
	fetch  Fetcher
	sites  *sites.Set
	albums AlbumMemory
}

func New(opts Options) *Resolver {
	return &Resolver{
		cache:  opts.HashCache,
		users:  opts.UserOrder,
		search: opts.Searcher,
		files:  opts.Files,
		fetch:  opts.Fetcher,
		sites:  opts.Sites,
		albums: opts.Albums,
	}
}

// Request is one resolution run.
type Request struct {
	Message *telego.Message
	Path    Path
}

// Resolve runs the pipeline. A *NoActionError means the message needs no
// annotation; any other error is a retryable failure. On success the matches
// are ordered by site priority, reduced to one per site on the channel path.
func (r *Resolver) Resolve(ctx context.Context, req Request) ([]fuzzysearch.Match, error) {
	msg := req.Message

	best := telegram.BestPhoto(msg.Photo)
	if best == nil {
		return nil, noAction(ReasonNoPhoto)
	}

	hash, err := r.lookupHash(ctx, best)
	if err != nil {
		return nil, err
	}

	matches, err := r.search.SearchHash(ctx, hash, MaxSourceDistance)
	if err != nil {
		return nil, fmt.Errorf("search sources: %w", err)
	}

	matches = filterDistance(matches, MaxSourceDistance)
	if len(matches) == 0 {
		return nil, noAction(ReasonNoMatches)
	}

	// Steps 4 and 5 hold the adapter lock; it is released before anything
	// below can reach the chat platform.
	if links := telegram.ExtractLinks(msg); len(links) > 0 {
		err := r.sites.Inspect(func(adapters []sites.Adapter) error {
			if linkWasSeen(adapters, links, matches) {
				return noAction(ReasonLinkPresent)
			}
			if r.hasSimilarLink(ctx, adapters, links, hash) {
				return noAction(ReasonSimilarLink)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	had, err := r.albums.AlreadyHadSource(ctx, msg.MediaGroupID, matchURLs(matches))
	if err != nil {
		return nil, fmt.Errorf("album memory: %w", err)
	}
	if had {
		return nil, noAction(ReasonAlbumDup)
	}

	if req.Path == PathGroup && isNoisy(matches) {
		return nil, noAction(ReasonNoisy)
	}

	sortMatches(matches, r.siteOrder(ctx, req))

	if req.Path == PathChannel {
		matches = firstOfEachSite(matches)
	}
	return matches, nil
}

// lookupHash returns the perceptual hash for the photo, computing and
// persisting it when the cache has no entry. A failed cache write only
// costs a recomputation later.
func (r *Resolver) lookupHash(ctx context.Context, photo *telego.PhotoSize) (int64, error) {
	cached, err := r.cache.CachedHash(ctx, photo.FileUniqueID)
	if err != nil {
		return 0, fmt.Errorf("hash cache: %w", err)
	}
	if cached != nil {
		return *cached, nil
	}

	data, err := r.files.DownloadPhoto(ctx, photo.FileID)
	if err != nil {
		return 0, fmt.Errorf("download photo: %w", err)
	}
	hash, err := imghash.FromBytes(data)
	if err != nil {
		return 0, fmt.Errorf("hash photo: %w", err)
	}

	if err := r.cache.SaveHash(ctx, photo.FileUniqueID, hash); err != nil {
		logger.WarnCF("resolver", "unable to persist photo hash", map[string]any{
			"file_unique_id": photo.FileUniqueID,
			"error":          err.Error(),
		})
	}
	return hash, nil
}

// siteOrder returns the ordering for this run: the sender's configured
// preference on the group path, the default priority otherwise.
func (r *Resolver) siteOrder(ctx context.Context, req Request) []sites.Site {
	if req.Path != PathGroup || r.users == nil || req.Message.From == nil {
		return sites.DefaultOrder()
	}

	order, err := r.users.UserSiteOrder(ctx, req.Message.From.ID)
	if err != nil {
		logger.WarnCF("resolver", "unable to load user site order", map[string]any{
			"user_id": req.Message.From.ID,
			"error":   err.Error(),
		})
		return sites.DefaultOrder()
	}
	if len(order) == 0 {
		return sites.DefaultOrder()
	}
	return order
}

// linkWasSeen reports whether any match URL refers to the same post as a URL
// already present in the message.
func linkWasSeen(adapters []sites.Adapter, links []string, matches []fuzzysearch.Match) bool {
	for _, m := range matches {
		for _, l := range links {
			if l == m.URL {
				return true
			}
			for _, a := range adapters {
				if a.IsSupported(l) && a.SameAs(m.URL, l) {
					return true
				}
			}
		}
	}
	return false
}

// hasSimilarLink checks whether any message link resolves to an image within
// hashing distance of the query. Every per-URL failure is a skip: a link we
// cannot confirm is treated as unrelated.
func (r *Resolver) hasSimilarLink(ctx context.Context, adapters []sites.Adapter, links []string, queryHash int64) bool {
	for _, link := range links {
		for _, a := range adapters {
			if !a.IsSupported(link) {
				continue
			}

			images, err := a.Images(ctx, link)
			if err != nil {
				logger.DebugCF("resolver", "adapter image lookup failed", map[string]any{
					"site":  a.Name(),
					"url":   link,
					"error": err.Error(),
				})
				break
			}
			for _, img := range images {
				data, err := r.fetch.Fetch(ctx, img)
				if err != nil {
					logger.DebugCF("resolver", "confirmation download skipped", map[string]any{
						"url":   img,
						"error": err.Error(),
					})
					continue
				}
				hash, err := imghash.FromBytes(data)
				if err != nil {
					continue
				}
				if imghash.Distance(queryHash, hash) <= imghash.NearDuplicate {
					return true
				}
			}

			// The first adapter claiming a link owns it.
			break
		}
	}
	return false
}

// isNoisy reports a result set dominated by twitter re-posts.
func isNoisy(matches []fuzzysearch.Match) bool {
	var twitter, others int
	for _, m := range matches {
		if m.Site == sites.Twitter {
			twitter++
		} else {
			others++
		}
	}
	return others <= 1 && twitter >= NoisySourceCount
}

func filterDistance(matches []fuzzysearch.Match, max int64) []fuzzysearch.Match {
	out := make([]fuzzysearch.Match, 0, len(matches))
	for _, m := range matches {
		if m.DistanceOr(fuzzysearch.FarDistance) <= max {
			out = append(out, m)
		}
	}
	return out
}

// sortMatches orders by site priority, keeping the in-site order stable.
func sortMatches(matches []fuzzysearch.Match, order []sites.Site) {
	sort.SliceStable(matches, func(i, j int) bool {
		return sites.Rank(order, matches[i].Site) < sites.Rank(order, matches[j].Site)
	})
}

// firstOfEachSite keeps the earliest match per site.
func firstOfEachSite(matches []fuzzysearch.Match) []fuzzysearch.Match {
	seen := make(map[sites.Site]bool, len(matches))
	out := make([]fuzzysearch.Match, 0, len(matches))
	for _, m := range matches {
		if seen[m.Site] {
			continue
		}
		seen[m.Site] = true
		out = append(out, m)
	}
	return out
}

func matchURLs(matches []fuzzysearch.Match) []string {
	urls := make([]string, len(matches))
	for i, m := range matches {
		urls[i] = m.URL
	}
	return urls
}
