// Package services defines shared utilities consumed by the resolver, the
// external API clients, and the HTTP layer.
//
// Key responsibilities:
//   - Context helpers that stamp request correlation and batch identifiers for
//     logging.
//   - Structured error markers plus the Wrap helper so a failure keeps its
//     kind (store i/o, transport, decode) all the way to the feed caller.
//
// Use these helpers when wiring new components so error classification and
// observability stay uniform across the service.
package services
