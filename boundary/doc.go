// Package boundary owns request routing between remote peers and
// in-process consumers.
//
// Ownership boundary:
// - channel registry and registration lifecycle
// - the single I/O goroutine that owns both endpoints
// - exited-reply substitution for cancelled or unknown channels
// - registry announcement publishing
package boundary
