// Package db opens the SQLite database used by officebot, applies the
// embedded schema migrations and serializes write transactions through a
// single Worker.
package db
