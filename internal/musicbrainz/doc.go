// Package musicbrainz is the rate-limited metadata client used by the release
// resolver.
//
// A Client issues exactly one GET per FetchOne call and reduces the release
// document to the two facts the feed needs: whether front cover art exists and
// which URL relations are attached. The client never retries and never sleeps;
// spacing between calls is owned by the caller, which uses MinInterval and
// SleepUntil to hold the window open after each attempt.
//
// Failures carry a services marker so callers can decide how much of the rate
// window to spend: services.ErrTransport when no response arrived, and
// services.ErrDecode when a response arrived but was unusable (non-2xx status or
// malformed JSON).
package musicbrainz
