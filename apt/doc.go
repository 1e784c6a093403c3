// Package apt models the APT repository metadata format: the candidate
// object paths under dists/<suite>, the Release/InRelease stanza, and the
// Packages/Sources indices it points to. It knows nothing about HTTP,
// concurrency, or disk layout — those live in fetch, stage, and gc.
package apt
