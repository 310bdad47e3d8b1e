// Package libssh implements the server-side connection-establishment
// core of an SSH-2 protocol library: version negotiation, algorithm
// negotiation, Diffie-Hellman (and vendor-extension) key exchange, and
// session-key installation, followed by a callback surface over
// USERAUTH / SERVICE / CHANNEL request messages.
//
// Channel data plumbing after a channel is open, re-keying, and the
// socket/poll layer itself are out of scope; see DESIGN.md.
package libssh

// Version identifies this library's protocol-core release.
const Version = "0.1.0"

// protocolVersionMajor is the fixed SSH protocol major version this core
// speaks (SSH-1 is rejected outright; see DESIGN.md's Open Questions).
const protocolVersionMajor = 2
