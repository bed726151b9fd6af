// Package relay forwards an upstream event-stream response to a client
// while decoding it incrementally.
//
// Upstream bytes are read in fixed-size chunks and fed through a stateful
// charset decoder, so a multi-byte character split across two reads is
// emitted once, intact. Malformed input is replaced with U+FFFD and counted
// instead of aborting the response. Every decoded chunk is written and
// flushed to the client as soon as it is available.
package relay
