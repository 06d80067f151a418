// Package user handles the account lifecycle: login with rate-limit
// recovery, client registration with its initial prekey upload, logout and
// connection handling.
package user
