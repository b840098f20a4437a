// Package redis implements the counter store and the change-notification
// pub/sub on top of go-redis. Vote mutations run as Lua scripts so the
// quota check and the paired ledger/budget increments form one atomic unit.
package redis
