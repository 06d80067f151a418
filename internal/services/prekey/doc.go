// Package prekey manages the prekey lifecycle: the registration batch, the
// reserved last-resort key and automatic replenishment when the pool runs
// low.
package prekey
