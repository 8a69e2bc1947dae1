// Package releasestore persists release enrichment records keyed by
// MusicBrainz release identifier.
//
// A Record is written exactly once, after the metadata service resolved a
// cache miss, and is never updated afterwards; the only removal path is the
// maintenance API used by the CLI. Two backends implement Backend: an
// embedded SQLite table (the default) and a Redis hash-per-release layout. A
// bounded in-process Memo can sit in front of either backend because records
// never change once written.
//
// # Link encoding
//
// External links are stored in a single text column. New rows hold a JSON
// array of {"type","url"} objects. Rows written by earlier deployments use a
// flat list joined by U+200B (zero width space) that alternates relation type
// and URL; DecodeLinks still reads that form so existing databases keep
// working without a migration step. The flat form cannot represent values that
// contain U+200B, which is why it is no longer written.
package releasestore
