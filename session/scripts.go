package session

// transitionScript implements TryTransition for the hash-based backends.
//
// KEYS[1] session key
// ARGV[1] expected status, ARGV[2] next status, ARGV[3] now (unix ms)
//
// Returns 1 when the status was swapped, 0 otherwise.
const transitionScript = `
local status = redis.call("HGET", KEYS[1], "status")
if not status or status ~= ARGV[1] then
  return 0
end
local expires = tonumber(redis.call("HGET", KEYS[1], "expires_at"))
if not expires or expires <= tonumber(ARGV[3]) then
  return 0
end
redis.call("HSET", KEYS[1], "status", ARGV[2])
return 1
`

// createScript writes a whole record and its native expiry in one step. An
// existing key is left untouched so a colliding id can never reset a used
// record back to pending.
//
// KEYS[1] session key
// ARGV[1] expiry (unix ms), ARGV[2..] alternating field/value pairs
//
// Returns 1 when the record was written, 0 when the key already exists.
const createScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("HSET", KEYS[1], unpack(ARGV, 2))
redis.call("PEXPIREAT", KEYS[1], ARGV[1])
return 1
`
