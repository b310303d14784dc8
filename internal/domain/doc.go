// Package domain holds the core model types and the contracts between the
// fan-out engine, the durable store, and the HTTP/WebSocket layers.
package domain
