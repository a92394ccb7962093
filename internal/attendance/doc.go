// Package attendance keeps the employee attendance log.
//
// A record is an open session while its logout time is unset. The ledger
// guarantees at most one open session per employee: a login closes any
// session left open before opening a new one, and a logout without an open
// session is still recorded as a record whose login and logout times match.
package attendance
