// Package config loads client settings and resolves the base endpoint.
//
// Values are layered in order: built-in defaults, the YAML config file,
// a .env file and APICLIENT_* environment variables, then command line flags.
//
// The base endpoint is chosen from an explicit base URL, else the front end
// origin with its hostname token rewritten, else the origin itself, else the
// local development default.
//
// Usage:
//
//	cfg, err := config.Load("", nil)
//	if err != nil {
//	    return err
//	}
//	endpoint := config.ResolveEndpoint(cfg.API)
package config
