package services

import (
	"net/http"
	"time"

	"FormRelay/internal/config"
	"FormRelay/internal/relay"
	"github.com/rs/zerolog"
)

type Services struct {
	Relay *relay.Relay
}

func New(cfg config.Config, log zerolog.Logger) *Services {
	if !cfg.UpstreamConfigured() {
		log.Warn().Str("fault", "operator").Msg("GOOGLE_SCRIPT_FROM is not set; form submissions will fail")
	}

	// Deadlines are per request inside the relay; the client only needs a
	// transport that keeps connections to the collector warm.
	client := &http.Client{
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConnsPerHost: 8,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: cfg.UpstreamTimeout,
		},
	}

	return &Services{
		Relay: relay.New(relay.Options{
			UpstreamURL:  cfg.UpstreamURL,
			Timeout:      cfg.UpstreamTimeout,
			UserAgent:    cfg.UpstreamUserAgent,
			Client:       client,
			Logger:       log,
			RedactFields: cfg.LogRedactFields,
		}),
	}
}
