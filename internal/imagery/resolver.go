// Package imagery resolves display images for teams and players.
//
// Two strategies exist: guessing CDN paths from an opaque image id, and
// scraping a team page for its Open Graph image. Every candidate URL is
// validated with a HEAD probe. Successful resolutions are memoized for the
// life of the process; failures are not.
package imagery

import (
	"context"
	"errors"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"transferbot/pkg/logx"
)

const maxPageBytes = 2 << 20

var resolutions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "transferbot_image_resolutions_total",
	Help: "Image resolutions by strategy (id, slug) and result (cached, resolved, miss)",
}, []string{"strategy", "result"})

var (
	ogImageRe     = regexp.MustCompile(`(?i)<meta\s+property=["']og:image["']\s+content=["']([^"']+)["']`)
	ogImageRevRe  = regexp.MustCompile(`(?i)<meta\s+content=["']([^"']+)["']\s+property=["']og:image["']`)
	mediaAssetRe  = regexp.MustCompile(`(?i)(https?://[^"']*/media/[^"']+\.(?:png|webp|jpg|jpeg))`)
	errBadStatus  = errors.New("unexpected status")
	errNotAnImage = errors.New("not an image")
)

type Config struct {
	// SiteURL hosts /team/<slug> pages and /media/<id>.<ext>.
	SiteURL string
	// APIURL hosts /public/media/<id>.<ext>.
	APIURL       string
	ProbeTimeout time.Duration
	PageTimeout  time.Duration
	CacheSize    int
	UserAgent    string
}

type Resolver struct {
	cfg    Config
	client *http.Client
	log    logx.Logger

	byID   *lru.Cache[string, string]
	bySlug *lru.Cache[string, string]
}

func New(cfg Config, client *http.Client, log logx.Logger) (*Resolver, error) {
	cfg.SiteURL = strings.TrimRight(strings.TrimSpace(cfg.SiteURL), "/")
	cfg.APIURL = strings.TrimRight(strings.TrimSpace(cfg.APIURL), "/")
	if cfg.SiteURL == "" || cfg.APIURL == "" {
		return nil, errors.New("imagery: site and api urls are required")
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 8 * time.Second
	}
	if cfg.PageTimeout <= 0 {
		cfg.PageTimeout = 12 * time.Second
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 4096
	}
	if client == nil {
		client = http.DefaultClient
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	byID, err := lru.New[string, string](cfg.CacheSize)
	if err != nil {
		return nil, err
	}
	bySlug, err := lru.New[string, string](cfg.CacheSize)
	if err != nil {
		return nil, err
	}
	return &Resolver{cfg: cfg, client: client, log: log, byID: byID, bySlug: bySlug}, nil
}

// TeamURL is the public page for a team slug.
func (r *Resolver) TeamURL(slug string) string {
	return r.cfg.SiteURL + "/team/" + url.PathEscape(strings.TrimSpace(slug))
}

// Candidates lists CDN guesses for an image id in probe order.
func (r *Resolver) Candidates(id string) []string {
	id = url.PathEscape(strings.TrimSpace(id))
	return []string{
		r.cfg.SiteURL + "/media/" + id + ".png",
		r.cfg.SiteURL + "/media/" + id + ".webp",
		r.cfg.APIURL + "/public/media/" + id + ".png",
		r.cfg.APIURL + "/public/media/" + id + ".webp",
	}
}

// ByID returns the first candidate CDN URL that probes as an image.
func (r *Resolver) ByID(ctx context.Context, id string) (string, bool) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", false
	}
	if u, ok := r.byID.Get(id); ok {
		resolutions.WithLabelValues("id", "cached").Inc()
		return u, true
	}
	for _, c := range r.Candidates(id) {
		if final, err := r.probe(ctx, c); err == nil {
			r.byID.Add(id, final)
			resolutions.WithLabelValues("id", "resolved").Inc()
			return final, true
		}
		if ctx.Err() != nil {
			break
		}
	}
	resolutions.WithLabelValues("id", "miss").Inc()
	r.log.Debug("image id unresolved", logx.String("image_id", id))
	return "", false
}

// BySlug scrapes the team page for an image and validates it.
func (r *Resolver) BySlug(ctx context.Context, slug string) (string, bool) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return "", false
	}
	if u, ok := r.bySlug.Get(slug); ok {
		resolutions.WithLabelValues("slug", "cached").Inc()
		return u, true
	}

	page := r.TeamURL(slug)
	body, err := r.fetchPage(ctx, page)
	if err != nil {
		resolutions.WithLabelValues("slug", "miss").Inc()
		r.log.Debug("team page fetch failed", logx.String("slug", slug), logx.Err(err))
		return "", false
	}

	for _, c := range extractCandidates(body, page) {
		if final, err := r.probe(ctx, c); err == nil {
			r.bySlug.Add(slug, final)
			resolutions.WithLabelValues("slug", "resolved").Inc()
			return final, true
		}
	}
	resolutions.WithLabelValues("slug", "miss").Inc()
	return "", false
}

// Logo tries the image id first, then the team page.
func (r *Resolver) Logo(ctx context.Context, id, slug string) (string, bool) {
	if u, ok := r.ByID(ctx, id); ok {
		return u, true
	}
	return r.BySlug(ctx, slug)
}

// extractCandidates returns, in order, the og:image URL and the first
// embedded media asset URL found in page.
func extractCandidates(page, base string) []string {
	var out []string
	for _, re := range []*regexp.Regexp{ogImageRe, ogImageRevRe} {
		if m := re.FindStringSubmatch(page); m != nil {
			if u := absolute(html.UnescapeString(m[1]), base); u != "" {
				out = append(out, u)
			}
			break
		}
	}
	if m := mediaAssetRe.FindStringSubmatch(page); m != nil {
		u := html.UnescapeString(m[1])
		if len(out) == 0 || out[0] != u {
			out = append(out, u)
		}
	}
	return out
}

func absolute(ref, base string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if u.IsAbs() {
		return u.String()
	}
	b, err := url.Parse(base)
	if err != nil {
		return ""
	}
	return b.ResolveReference(u).String()
}

func (r *Resolver) fetchPage(ctx context.Context, page string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.PageTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, page, nil)
	if err != nil {
		return "", err
	}
	r.decorate(req)
	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", errBadStatus
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// probe issues a HEAD request (redirects followed) and returns the final URL
// when it answers 200 with an image or generic binary content type.
func (r *Resolver) probe(ctx context.Context, candidate string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, candidate, nil)
	if err != nil {
		return "", err
	}
	r.decorate(req)
	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	_ = resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errBadStatus
	}
	if !isImageType(resp.Header.Get("Content-Type")) {
		return "", errNotAnImage
	}
	if resp.Request != nil && resp.Request.URL != nil {
		return resp.Request.URL.String(), nil
	}
	return candidate, nil
}

func isImageType(ct string) bool {
	ct = strings.ToLower(strings.TrimSpace(ct))
	if strings.Contains(ct, "image") {
		return true
	}
	media, _, _ := strings.Cut(ct, ";")
	return strings.TrimSpace(media) == "application/octet-stream"
}

func (r *Resolver) decorate(req *http.Request) {
	if ua := strings.TrimSpace(r.cfg.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}
}
