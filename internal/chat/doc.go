// Package chat implements the broadcast core of the line chat server.
//
// A Registry maps each connection address to a bounded delivery queue. Every
// registered peer gets its own delivery worker that drains the queue into the
// peer's outbound line sink. The Handler drives one connection through its
// handshake, active and closed phases and turns each inbound line into a
// broadcast to every other registered peer.
package chat
