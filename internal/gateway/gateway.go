// Package gateway is the device-local offline proxy. It sits between the UI
// and the backend, caching the app shell and read responses so the app keeps
// working without a network, and receives push deliveries for the device.
//
// It runs as its own process (cmd/agent) and shares nothing with the client
// packages except HTTP.
package gateway

import (
	"context"
	_ "embed"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/eggsregaco/regaco/internal/logging"
)

//go:embed offline.html
var offlinePage []byte

// maxCachedBody caps what a single cached response may occupy.
const maxCachedBody = 4 << 20

// Config holds the gateway settings.
type Config struct {
	// ListenAddr is the local address the gateway serves on.
	ListenAddr string
	// UpstreamURL is the backend origin requests are proxied to.
	UpstreamURL string
	// PublicURL is the externally visible base of this gateway, used to
	// derive the push delivery endpoint.
	PublicURL string
	// APIPrefix marks paths that are never cached, only proxied.
	APIPrefix string
	// CacheDBPath is the SQLite file backing the asset cache.
	CacheDBPath string
	// Generation tags the asset cache; bumping it invalidates all cached
	// assets on the next activate.
	Generation string
	// Manifest lists the app-shell paths precached at install.
	Manifest []string
	// FetchTimeout bounds a single upstream request.
	FetchTimeout time.Duration
}

// Gateway proxies fetches, maintains the versioned asset cache and handles
// push for one device.
type Gateway struct {
	cfg      Config
	store    *Store
	upstream *url.URL
	client   *http.Client
	log      logging.Logger
	notifier Notifier
	windows  WindowManager

	active atomic.Bool
}

func New(cfg Config, store *Store, notifier Notifier, windows WindowManager, log logging.Logger) (*Gateway, error) {
	upstream, err := url.Parse(cfg.UpstreamURL)
	if err != nil {
		return nil, fmt.Errorf("upstream url: %w", err)
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 10 * time.Second
	}
	if cfg.Generation == "" {
		return nil, fmt.Errorf("cache generation must not be empty")
	}
	return &Gateway{
		cfg:      cfg,
		store:    store,
		upstream: upstream,
		client:   &http.Client{Timeout: cfg.FetchTimeout},
		log:      log,
		notifier: notifier,
		windows:  windows,
	}, nil
}

// Install precaches the app shell into the current generation. Any fetch
// failure aborts the whole install; the store keeps whatever generation was
// active before.
func (g *Gateway) Install(ctx context.Context) error {
	assets := make([]Asset, 0, len(g.cfg.Manifest))
	for _, path := range g.cfg.Manifest {
		a, err := g.fetchAsset(ctx, path)
		if err != nil {
			return fmt.Errorf("install: precache %s: %w", path, err)
		}
		assets = append(assets, *a)
	}
	if err := g.store.InstallGeneration(ctx, g.cfg.Generation, assets); err != nil {
		return fmt.Errorf("install: %w", err)
	}
	g.log.Info(ctx, "gateway installed", "generation", g.cfg.Generation, "assets", len(assets))
	return nil
}

// Activate deletes every stale cache generation, then starts serving. Until
// Activate completes the gateway answers 503 for all traffic.
func (g *Gateway) Activate(ctx context.Context) error {
	gens, err := g.store.Generations(ctx)
	if err != nil {
		return fmt.Errorf("activate: %w", err)
	}
	for _, gen := range gens {
		if gen == g.cfg.Generation {
			continue
		}
		if err := g.store.DeleteGeneration(ctx, gen); err != nil {
			return fmt.Errorf("activate: %w", err)
		}
		g.log.Info(ctx, "stale cache generation removed", "generation", gen)
	}
	g.active.Store(true)
	g.log.Info(ctx, "gateway active", "generation", g.cfg.Generation)
	return nil
}

// Active reports whether the gateway has claimed traffic.
func (g *Gateway) Active() bool { return g.active.Load() }

// Router builds the gateway's HTTP surface: subscription management, push
// delivery, metrics, and the catch-all fetch handler.
func (g *Gateway) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/push", func(r chi.Router) {
		r.Post("/subscription", g.handleSubscribe)
		r.Get("/subscription", g.handleSubscriptionGet)
		r.Delete("/subscription", g.handleUnsubscribe)
		r.Post("/deliver/{token}", g.handleDelivery)
	})

	r.Post("/sync/{tag}", g.handleSync)

	r.NotFound(g.handleFetch)
	return r
}

// handleFetch is the network-first proxy. Non-GET requests and API paths
// pass straight through; cacheable GETs fall back to the asset cache and
// finally the offline page.
func (g *Gateway) handleFetch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !g.active.Load() {
		http.Error(w, "gateway not active", http.StatusServiceUnavailable)
		return
	}

	if r.Method != http.MethodGet || g.isAPIPath(r.URL.Path) {
		g.proxy(w, r)
		return
	}

	resp, err := g.roundTrip(r)
	if err == nil {
		defer resp.Body.Close()
		if resp.StatusCode < http.StatusInternalServerError {
			// Buffer up to the cache cap; anything beyond it is streamed
			// through uncached.
			body, rerr := io.ReadAll(io.LimitReader(resp.Body, maxCachedBody+1))
			if rerr == nil {
				if resp.StatusCode == http.StatusOK && len(body) <= maxCachedBody {
					a := Asset{
						URL:         r.URL.Path,
						ContentType: resp.Header.Get("Content-Type"),
						Body:        body,
						FetchedAt:   time.Now(),
					}
					if err := g.store.PutAsset(ctx, g.cfg.Generation, a); err != nil {
						g.log.Warn(ctx, "caching fetched asset", "error", err, "path", r.URL.Path)
					}
				}
				fetchNetworkOK.Inc()
				copyHeader(w.Header(), resp.Header)
				w.WriteHeader(resp.StatusCode)
				w.Write(body)
				if len(body) > maxCachedBody {
					io.Copy(w, resp.Body)
				}
				return
			}
			g.log.Warn(ctx, "upstream body aborted", "error", rerr, "path", r.URL.Path)
		}
	}

	cached, cerr := g.store.GetAsset(ctx, g.cfg.Generation, r.URL.Path)
	if cerr != nil {
		g.log.Error(ctx, "reading asset cache", "error", cerr, "path", r.URL.Path)
	}
	if cached != nil {
		fetchCacheHits.Inc()
		g.log.Debug(ctx, "fetch served from cache", "path", r.URL.Path)
		if cached.ContentType != "" {
			w.Header().Set("Content-Type", cached.ContentType)
		}
		w.Header().Set("X-Served-From", "cache")
		w.WriteHeader(http.StatusOK)
		w.Write(cached.Body)
		return
	}

	fetchCacheMisses.Inc()
	if isNavigation(r) {
		offlineFallbacks.Inc()
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write(offlinePage)
		return
	}
	http.Error(w, "offline and not cached", http.StatusServiceUnavailable)
}

// handleSync is the background-sync extension point. Known tags are accepted
// and currently complete immediately; unknown tags are rejected.
func (g *Gateway) handleSync(w http.ResponseWriter, r *http.Request) {
	tag := chi.URLParam(r, "tag")
	if tag != "sync-confirmations" {
		http.Error(w, "unknown sync tag", http.StatusNotFound)
		return
	}
	g.log.Debug(r.Context(), "sync requested", "tag", tag)
	w.WriteHeader(http.StatusAccepted)
}

// proxy streams a request through to the upstream unchanged. Bodies are
// never buffered here, so responses of any size pass intact.
func (g *Gateway) proxy(w http.ResponseWriter, r *http.Request) {
	resp, err := g.roundTrip(r)
	if err != nil {
		http.Error(w, "upstream unreachable", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()
	copyHeader(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)
	io.Copy(w, resp.Body)
}

// roundTrip replays the incoming request against the upstream. The caller
// owns the response body.
func (g *Gateway) roundTrip(r *http.Request) (*http.Response, error) {
	target := *r.URL
	target.Scheme = g.upstream.Scheme
	target.Host = g.upstream.Host

	req, err := http.NewRequestWithContext(r.Context(), r.Method, target.String(), r.Body)
	if err != nil {
		return nil, err
	}
	req.Header = r.Header.Clone()
	req.Host = g.upstream.Host

	return g.client.Do(req)
}

// fetchAsset retrieves one manifest path for precaching.
func (g *Gateway) fetchAsset(ctx context.Context, path string) (*Asset, error) {
	u := *g.upstream
	u.Path = path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxCachedBody+1))
	if err != nil {
		return nil, err
	}
	if len(body) > maxCachedBody {
		return nil, fmt.Errorf("asset exceeds cache limit")
	}
	return &Asset{
		URL:         path,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
		FetchedAt:   time.Now(),
	}, nil
}

func (g *Gateway) isAPIPath(path string) bool {
	return g.cfg.APIPrefix != "" && strings.HasPrefix(path, g.cfg.APIPrefix)
}

// isNavigation mirrors the browser's distinction between page loads and
// subresource requests.
func isNavigation(r *http.Request) bool {
	if r.Header.Get("Sec-Fetch-Mode") == "navigate" {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

func copyHeader(dst, src http.Header) {
	for k, vv := range src {
		for _, v := range vv {
			dst.Add(k, v)
		}
	}
}
