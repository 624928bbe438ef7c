// Package redisstore implements the quota counter store on Redis.
//
// Each account is a hash under "<prefix>account:<uuid>" with the fields plan,
// podcasts_tracked, ai_analyses_used and charts_accessed. Check-and-increment
// runs as a Lua script so the plan lookup, the comparison and the increment
// are one atomic step on the server.
package redisstore
