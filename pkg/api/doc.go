// Package api provides the resilient JSON client for the remote service.
//
// This package includes:
//   - A Client bound to an immutable base endpoint, with a cookie jar so
//     session credentials travel with every call
//   - Verb helpers (Get, Post, Put, Patch, Delete) over a single Do entry point
//   - Bounded retries with linear backoff for 5xx replies and transport failures
//   - An advisory health probe before every retry
//   - An Observer hook for attempts, retries, health checks and completion
//
// Example usage:
//
//	client := api.NewClientFromConfig(cfg, api.WithLogger(log))
//
//	resp, err := client.Post(ctx, "/api/items", map[string]any{"name": "widget"})
//	if err != nil {
//	    switch errors.KindOf(err) {
//	    case errors.KindClient:
//	        // 4xx, surfaced without retrying
//	    case errors.KindExhausted:
//	        // every attempt failed with a 5xx or a transport error
//	    }
//	}
//
//	item, err := api.DecodeAs[Item](resp)
package api
