// Package feed turns a user's fresh releases into an RSS channel.
//
// Builder fetches the releases from ListenBrainz, submits all of their release
// ids to the resolver as one batch, and zips the resolver's records with the
// releases by position. Release metadata and resolver output are interpolated
// into item HTML through html/template, so every value is escaped for the
// context it lands in.
package feed
