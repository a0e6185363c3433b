// Package ratelimit enforces per-identity request quotas with a fixed-window
// counter.
//
// Every identity owns one window: the first request after the window expired
// opens a new one starting at that request, and each request increments the
// counter. A request is rejected once the counter exceeds the limit, and the
// caller is told how long to wait until the window resets.
//
// Two backends implement Limiter:
//
//   - MemoryLimiter keeps windows in process memory, sharded by a hash of the
//     identity so unrelated identities rarely contend on the same mutex. It
//     only limits a single instance.
//   - RedisLimiter keeps windows in Redis and evaluates the increment and the
//     expiry in one Lua script, enforcing a single budget across replicas.
//
// Guard ties a Limiter to a Policy and decides what to do when the backend
// fails.
package ratelimit
