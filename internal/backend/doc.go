// Package backend is the HTTP client for the messaging backend's REST API:
// authentication, client registration, prekey upload and claim, connection
// management and message delivery.
package backend
