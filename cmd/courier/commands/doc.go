// Package commands defines the courier CLI and wires dependencies for
// subcommands.
//
// Commands
//
//   - run            Log in and answer incoming messages
//   - send           Send a text into a conversation
//   - fingerprint    Print the local identity fingerprint
//
// # Implementation
//
// The root command assembles the SDK (backend client, cryptobox, services)
// before any subcommand runs. Account credentials come from the
// COURIER_EMAIL and COURIER_PASSWORD environment variables so they never
// appear in shell history; COURIER_EMAIL is only needed by commands that
// log in, so fingerprint works offline with just the password.
package commands
