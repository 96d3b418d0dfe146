package redisstore

import "github.com/redis/go-redis/v9"

// Запись токена хранится как hash:
//
//	id, kind, owner, exp (unix ms), created (unix ms), used (0|1), active (0|1)
//
// Все переходы флагов выполняются внутри Lua, поэтому проверка и запись атомарны.

// createTokenLua stores a new record unless the key is taken.
// KEYS[1] = token key
// ARGV = id, kind, owner, exp, created, used, active, pexpireat
//
// Returns 1 on success, 0 if the key already exists.
var createTokenLua = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
redis.call('HSET', KEYS[1],
  'id', ARGV[1],
  'kind', ARGV[2],
  'owner', ARGV[3],
  'exp', ARGV[4],
  'created', ARGV[5],
  'used', ARGV[6],
  'active', ARGV[7])
redis.call('PEXPIREAT', KEYS[1], ARGV[8])
return 1
`)

// consumeTemporaryLua flips used on a live temporary token.
// KEYS[1] = token key
// ARGV[1] = now (unix ms)
//
// Returns 1 if this call consumed the token, 0 otherwise.
var consumeTemporaryLua = redis.NewScript(`
local rec = redis.call('HMGET', KEYS[1], 'kind', 'used', 'active', 'exp')
if not rec[1] then
  return 0
end
if rec[1] ~= 'temporary' or rec[2] ~= '0' or rec[3] ~= '1' then
  return 0
end
if tonumber(rec[4]) <= tonumber(ARGV[1]) then
  return 0
end
redis.call('HSET', KEYS[1], 'used', '1')
return 1
`)

// rotateRefreshLua deactivates the old refresh token and writes its successor.
// KEYS[1] = old token key
// KEYS[2] = successor key
// ARGV[1] = owner
// ARGV[2] = now (unix ms)
// ARGV[3..9] = successor id, exp, created, pexpireat, used, active, kind
//
// Returns 1 on success, 0 if the old token is not redeemable,
// error 'exists' if the successor key is taken.
var rotateRefreshLua = redis.NewScript(`
local rec = redis.call('HMGET', KEYS[1], 'kind', 'owner', 'active', 'exp')
if not rec[1] then
  return 0
end
if rec[1] ~= 'refresh' or rec[2] ~= ARGV[1] or rec[3] ~= '1' then
  return 0
end
if tonumber(rec[4]) <= tonumber(ARGV[2]) then
  return 0
end
if redis.call('EXISTS', KEYS[2]) == 1 then
  return {err='exists'}
end
redis.call('HSET', KEYS[1], 'active', '0')
redis.call('HSET', KEYS[2],
  'id', ARGV[3],
  'kind', ARGV[9],
  'owner', ARGV[1],
  'exp', ARGV[4],
  'created', ARGV[5],
  'used', ARGV[7],
  'active', ARGV[8])
redis.call('PEXPIREAT', KEYS[2], ARGV[6])
return 1
`)

// revokeRefreshLua deactivates a refresh token of the given owner,
// no-op for anything else.
// KEYS[1] = token key
// ARGV[1] = owner
var revokeRefreshLua = redis.NewScript(`
local rec = redis.call('HMGET', KEYS[1], 'kind', 'owner')
if rec[1] == 'refresh' and rec[2] == ARGV[1] then
  redis.call('HSET', KEYS[1], 'active', '0')
end
return 1
`)

// sweepLua deletes the record if it expired before now.
// KEYS[1] = token key
// ARGV[1] = now (unix ms)
//
// Returns 1 if deleted.
var sweepLua = redis.NewScript(`
local exp = redis.call('HGET', KEYS[1], 'exp')
if exp and tonumber(exp) < tonumber(ARGV[1]) then
  redis.call('DEL', KEYS[1])
  return 1
end
return 0
`)
