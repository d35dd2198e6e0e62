package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// DefaultLocalEndpoint is the back end address used during local development
const DefaultLocalEndpoint = "http://localhost:3001"

// EndpointSource records which resolution rule produced an Endpoint
type EndpointSource string

const (
	SourceExplicit   EndpointSource = "explicit"
	SourceRewrite    EndpointSource = "hostname-rewrite"
	SourceSameOrigin EndpointSource = "same-origin"
	SourceLocal      EndpointSource = "local-default"
)

// Endpoint is the resolved base endpoint. It is built once at startup and
// shared read-only by every client of the session.
type Endpoint struct {
	base   string
	source EndpointSource
}

// NewEndpoint returns an explicitly configured endpoint
func NewEndpoint(base string) Endpoint {
	return Endpoint{base: strings.TrimRight(base, "/"), source: SourceExplicit}
}

// Base returns the base URL without a trailing slash
func (e Endpoint) Base() string { return e.base }

// Source returns the rule that produced the endpoint
func (e Endpoint) Source() EndpointSource { return e.source }

// URL joins path onto the base. Absolute URLs are returned unchanged.
func (e Endpoint) URL(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return e.base + path
}

func (e Endpoint) String() string {
	return fmt.Sprintf("%s (%s)", e.base, e.source)
}

// ResolveEndpoint picks the base endpoint, in order, from:
//  1. the explicit BaseURL
//  2. the origin with its front end hostname token swapped for the back end token
//  3. the origin itself (same-origin deployment)
//  4. the local development default
//
// A same-origin deployment in a browser uses relative URLs; outside one the
// origin has to be spelled out, so rule 3 yields the origin URL.
func ResolveEndpoint(cfg APIConfig) Endpoint {
	if cfg.BaseURL != "" {
		return NewEndpoint(cfg.BaseURL)
	}

	if origin, err := url.Parse(cfg.Origin); err == nil && origin.Host != "" {
		host := origin.Hostname()

		if cfg.FrontendToken != "" && cfg.BackendToken != "" && strings.Contains(host, cfg.FrontendToken) {
			rewritten := *origin
			rewritten.Host = strings.Replace(host, cfg.FrontendToken, cfg.BackendToken, 1)
			if port := origin.Port(); port != "" {
				rewritten.Host = net.JoinHostPort(rewritten.Host, port)
			}
			return Endpoint{base: originBase(&rewritten), source: SourceRewrite}
		}

		if !isLocalHost(host) {
			return Endpoint{base: originBase(origin), source: SourceSameOrigin}
		}
	}

	local := cfg.LocalDefault
	if local == "" {
		local = DefaultLocalEndpoint
	}
	return Endpoint{base: strings.TrimRight(local, "/"), source: SourceLocal}
}

func originBase(u *url.URL) string {
	return u.Scheme + "://" + u.Host
}

func isLocalHost(host string) bool {
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("scheme must be http or https")
	}
	if u.Host == "" {
		return errors.New("host is required")
	}
	return nil
}
