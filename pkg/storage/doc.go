// Package storage persists response bodies produced by batch runs.
//
// Each response is written to <name>.json in the output directory through a
// temporary file and a rename. Names already present on disk are indexed at
// start-up so a rerun can skip work that finished earlier.
//
// Usage:
//
//	manager, err := storage.NewManager("responses")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if !manager.IsSaved("list-items") {
//	    err = manager.SaveResponse("list-items", bytes.NewReader(body))
//	}
package storage
