// Package google implements the Google OAuth client side of officebot.
//
// An Authenticator builds the consent URL handed out by the authenticate
// command, exchanges the authorization code received on /callback and
// refreshes the access token before every Calendar call. Tokens live in a
// keyed TokenStore: in memory, in a JSON file or in the SQLite database, with
// optional AES-256-GCM encryption of the token values at rest.
package google
