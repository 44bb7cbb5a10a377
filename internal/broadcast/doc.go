// ABOUTME: Broadcast package for fanning out frames and events
// ABOUTME: Provides a generic bounded ring with per-receiver cursors
// Package broadcast delivers every message to every subscriber without ever
// blocking the sender. Each receiver keeps its own cursor into a fixed size
// ring; a receiver that falls more than the ring's capacity behind gets a
// *LaggedError carrying the number of missed messages and resumes from the
// oldest message still held.
package broadcast
