package redis

import (
	goredis "github.com/redis/go-redis/v9"
)

// Lua scripts for atomic vote mutations. The quota/ledger check and the
// paired increments of the per-restaurant ledger entry and the user's
// budget counter execute as one unit, so two concurrent casts by the same
// user can never both pass the cap check.
//
// Both scripts return {status, ups, downs}: status 1 on success, 0 on
// rejection, followed by the user's budget after the call.

// castVoteScript rejects when the user's budget for the direction is
// already at cap, otherwise increments the ledger entry and the budget
// counter together.
// KEYS: [1]=vote ledger hash, [2]=user budget hash
// ARGV: [1]=user id (ledger field), [2]=budget field (ups|downs), [3]=cap
var castVoteScript = goredis.NewScript(`
local total = tonumber(redis.call('HGET', KEYS[2], ARGV[2])) or 0
local status = 0
if total < tonumber(ARGV[3]) then
  redis.call('HINCRBY', KEYS[1], ARGV[1], 1)
  redis.call('HINCRBY', KEYS[2], ARGV[2], 1)
  status = 1
end
local ups = tonumber(redis.call('HGET', KEYS[2], 'ups')) or 0
local downs = tonumber(redis.call('HGET', KEYS[2], 'downs')) or 0
return {status, ups, downs}
`)

// retractVoteScript rejects when the user's ledger entry for this
// restaurant and direction is zero or absent, otherwise decrements the
// ledger entry and the budget counter together.
// KEYS: [1]=vote ledger hash, [2]=user budget hash
// ARGV: [1]=user id (ledger field), [2]=budget field (ups|downs)
var retractVoteScript = goredis.NewScript(`
local entry = tonumber(redis.call('HGET', KEYS[1], ARGV[1])) or 0
local status = 0
if entry > 0 then
  redis.call('HINCRBY', KEYS[1], ARGV[1], -1)
  redis.call('HINCRBY', KEYS[2], ARGV[2], -1)
  status = 1
end
local ups = tonumber(redis.call('HGET', KEYS[2], 'ups')) or 0
local downs = tonumber(redis.call('HGET', KEYS[2], 'downs')) or 0
return {status, ups, downs}
`)
