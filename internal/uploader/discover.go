package uploader

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/agrc/honeycomb/internal/errs"
)

// DiscoverConfig points at the Discover map-service front end whose
// tile cache needs busting after a basemap is re-uploaded.
type DiscoverConfig struct {
	BaseURL  string
	Username string
	Password string
}

func (c DiscoverConfig) enabled() bool {
	return c.BaseURL != ""
}

// bustDiscoverCache logs in to Discover and asks it to drop its cached
// copy of basemap's tiles, mirroring the login-then-reset hook the
// original pipeline calls after every upload.
func bustDiscoverCache(ctx context.Context, client *http.Client, cfg DiscoverConfig, basemap string, logger *slog.Logger) error {
	if !cfg.enabled() {
		logger.Debug("discover cache bust skipped, no base url configured")
		return nil
	}

	loginURL := cfg.BaseURL + "/login"
	form := url.Values{"username": {cfg.Username}, "password": {cfg.Password}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, loginURL, nil)
	if err != nil {
		return &errs.NotificationError{Cause: err}
	}
	req.URL.RawQuery = form.Encode()

	resp, err := client.Do(req)
	if err != nil {
		return &errs.NotificationError{Cause: fmt.Errorf("discover login: %w", err)}
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		return &errs.NotificationError{Cause: fmt.Errorf("discover login returned %d", resp.StatusCode)}
	}

	resetURL := fmt.Sprintf("%s/reset?basemap=%s", cfg.BaseURL, url.QueryEscape(basemap))
	resetReq, err := http.NewRequestWithContext(ctx, http.MethodGet, resetURL, nil)
	if err != nil {
		return &errs.NotificationError{Cause: err}
	}
	resetResp, err := client.Do(resetReq)
	if err != nil {
		return &errs.NotificationError{Cause: fmt.Errorf("discover reset: %w", err)}
	}
	defer resetResp.Body.Close()
	if resetResp.StatusCode >= 300 {
		return &errs.NotificationError{Cause: fmt.Errorf("discover reset returned %d", resetResp.StatusCode)}
	}

	return nil
}

// discoverHTTPClient is split out so tests can swap in a shorter timeout.
func discoverHTTPClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}
