// Package worker holds the navigation interception core: the request
// classifier, the cache-first and fallback strategies, install-time priming of
// the entry document and activation-time removal of superseded generations.
// It never touches HTTP servers directly; internal/server bridges incoming
// requests to Worker.HandleFetch and the CLI drives Install/Activate.
package worker
