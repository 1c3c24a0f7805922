// Package server hosts the Fiber HTTP service that fronts the origin. It owns
// the middleware chain (recover, request id), turns incoming requests into
// worker.Request values, and either answers with the entry document snapshot
// or hands the request to the passthrough proxy. Diagnostics under /-/ are
// registered by the routes subpackage and never reach the worker.
package server
