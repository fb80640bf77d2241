// Package codec owns the structured payload transform.
//
// Ownership boundary:
// - skeleton/buffer split and reassembly
// - tuple and non-string-key mapping representation
// - numeric array extraction and dtype narrowing
package codec
