// Package preset loads relay configuration snapshots from TOML documents.
//
// A preset is split across documents: usually a pins document holding the
// [[pin]] array and a buttons document holding the [buttons] table. Every
// load starts from an empty snapshot and applies the documents in order, so
// a buttons document may reference pins declared by an earlier one. A load
// either yields a complete, valid snapshot or an error wrapping
// relay.ErrParse; partial snapshots are never returned.
//
// Loader adds the fallback policy used by the daemon: when the primary pair
// fails, a single self-contained fallback document is tried instead.
package preset
