// Package redis wraps the go-redis client with circuit breaker protection
// and hosts the per-connection reaction rate limiter.
package redis
