// Package transform contains named transforms and wrappers that add
// behavior to any batch.Transform.
//
// Transforms are registered by name in a Registry so that worker processes
// can find them again; see executor.ProcessPool. The wrappers (Logging,
// Stats and Cached) keep the name of the transform they wrap, so they can
// be stacked in any order:
//
//	t, _ := transform.Default().Get("scan")
//	t = transform.WithLogging(transform.WithStats(t, collector), logger)
package transform
