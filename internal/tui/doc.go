// Package tui is the full-screen process tree front end. Model drives a
// monitor from the bubbletea event loop: it applies waiting snapshots on
// every tick (or as soon as the sampler announces one), receives the row
// mutations as the tree's View, and renders the expanded part of the tree.
package tui
