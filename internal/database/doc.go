// Package database provides PostgreSQL-backed persistence for user identities.
package database
