// Package preflight runs readiness checks for the feed daemon.
//
// Checks cover the data and log directories, the configured release store,
// and reachability of the ListenBrainz and MusicBrainz APIs. The daemon logs
// failed checks at startup and the status command prints every result.
package preflight
