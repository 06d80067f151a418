// Package app wires the SDK together: backend client, cryptobox, services
// and the realtime event pump.
package app
