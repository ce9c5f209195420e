package config

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"
)

// Validate checks configuration invariants and returns actionable errors.
func Validate(cfg *Config) error {
	if cfg == nil {
		return nil
	}

	var errs []error

	if cfg.Model.BaseURL != "" {
		if _, err := url.ParseRequestURI(cfg.Model.BaseURL); err != nil {
			errs = append(errs, fmt.Errorf("model.base_url: invalid URL %q: %w", cfg.Model.BaseURL, err))
		}
	}
	if cfg.Model.RequestTimeout != "" {
		d, err := time.ParseDuration(cfg.Model.RequestTimeout)
		if err != nil {
			errs = append(errs, fmt.Errorf("model.request_timeout: invalid duration %q: %w", cfg.Model.RequestTimeout, err))
		} else if d <= 0 {
			errs = append(errs, fmt.Errorf("model.request_timeout: must be > 0, got %q", cfg.Model.RequestTimeout))
		}
	}

	names := make([]string, 0, len(cfg.Servers))
	for name := range cfg.Servers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		errs = append(errs, validateServer(name, cfg.Servers[name])...)
	}

	return errors.Join(errs...)
}

func validateServer(name string, srv ServerConfig) []error {
	var errs []error

	if len(srv.Command) == 0 || strings.TrimSpace(srv.Command[0]) == "" {
		errs = append(errs, fmt.Errorf("servers.%s: missing command", name))
	}
	if len(srv.Tools) == 0 {
		errs = append(errs, fmt.Errorf("servers.%s: missing tools list", name))
	}
	for i, tool := range srv.Tools {
		if strings.TrimSpace(tool) == "" {
			errs = append(errs, fmt.Errorf("servers.%s.tools[%d]: empty tool name", name, i))
		}
	}

	return errs
}
