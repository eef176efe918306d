// Package authcache memoizes the last successful authorization result.
//
// The application only ever has one signed-in identity at a time, so a
// single slot is sufficient. An entry is served only while it is younger
// than the TTL and keyed to the current identity's email; anything else
// reads as a miss. The slot sits on a small KV interface so the TTL and
// email-binding rules are testable without a real persistent store;
// Memory is the default backend, File and S3 persist across restarts.
package authcache
