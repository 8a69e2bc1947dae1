// Package main hosts the lbfeed CLI entrypoint and command graph.
//
// The Cobra command tree starts the feed daemon, resolves release ids through
// a local resolver, inspects and prunes the release store, and scaffolds
// configuration. Commands that touch the store take the same data-directory
// lock as the daemon, so they refuse to run while a daemon owns the store.
package main
