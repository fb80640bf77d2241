// Package comm owns the envelope wire contract.
//
// Ownership boundary:
// - class tag registry and envelope constructors
// - multipart frame encoding/decoding
// - reply submission contract for received requests
package comm
