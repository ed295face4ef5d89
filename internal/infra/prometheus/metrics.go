package prometheus

import (
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Process-wide application counters, registered on the default registry the
// /metrics server exposes.
var (
	LinksCreated = promauto.NewCounter(prom.CounterOpts{
		Name: "shrinkray_links_created_total",
		Help: "Short links successfully created.",
	})

	Redirects = promauto.NewCounter(prom.CounterOpts{
		Name: "shrinkray_redirects_total",
		Help: "Redirects served for resolved short codes.",
	})

	CacheLookups = promauto.NewCounterVec(prom.CounterOpts{
		Name: "shrinkray_cache_lookups_total",
		Help: "Redirect-path cache lookups by result.",
	}, []string{"result"})
)

const (
	CacheHit  = "hit"
	CacheMiss = "miss"
)
