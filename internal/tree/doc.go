// Package tree holds the live process tree and the synchronizer that
// reconciles it with each new snapshot.
//
// A [Tree] is owned by a single consumer goroutine. [Tree.Sync] merges an
// incoming snapshot into the live tree level by level with a two-pointer
// walk over the ascending sibling lists, reporting each structural change
// to a [View] as a bracketed insert or remove and each changed row as a
// DataChanged call. The first snapshot applied to an empty tree is adopted
// wholesale inside a single reset.
//
// Row numbers stay contiguous and siblings stay sorted after every
// mutation, so a view may index rows by (parent, row) at any time between
// calls.
package tree
