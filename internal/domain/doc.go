// Package domain holds the core model types and the interfaces the vote
// accounting service depends on. Implementations live in the redis,
// database and websocket packages.
package domain
