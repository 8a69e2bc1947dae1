// Package resolver serializes release metadata lookups into one rate-limited
// stream.
//
// A single Resolver goroutine (Run) owns the release store and the metadata
// fetcher. Any number of producers reach it through a Handle, which enqueues a
// batch of release ids on a bounded channel and waits on a single-use reply
// channel. Batches are served first-in first-out and the ids inside a batch are
// resolved one at a time in input order, so no two external calls are ever in
// flight and the spacing between call starts is enforced with plain sleeps.
//
// Each id goes through TryCache and, on a miss, FetchAndStore. The first error
// abandons the batch: the caller receives that error and never a partial list.
// A successful reply always has one record per requested id, in request order.
//
// Pacing after an external call:
//
//   - success, decode failure, insert failure: the worker sleeps until the
//     window opened at call start has elapsed
//   - transport failure: the reply is sent without sleeping, but the next
//     external call still waits for the window
//   - cache hits never wait
package resolver
