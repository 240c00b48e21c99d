// Package process describes the raw process facts proctree samples from the
// operating system and the Enumerator interface that produces them.
//
// An enumeration is a map from pid to [Entry]. Each entry carries one
// immutable [Sample] and, when the platform reports processes already grouped
// by parentage, the nested entries of its children in Tasks. Flat
// enumerations leave Tasks empty and express the hierarchy only through
// Sample.Parent; the snapshot builder reconstructs the edges either way.
//
// The production implementation, [SystemEnumerator], reads the process table
// through gopsutil and collects per-process fields in parallel.
package process
