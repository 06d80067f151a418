// Package transport delivers realtime backend events over a websocket.
//
// The stream reconnects with jittered exponential backoff and keeps the
// connection alive with periodic pings. Events are handed to the consumer
// one at a time, in arrival order, on a single channel.
package transport
