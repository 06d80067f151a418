// Package conversation implements the outbound message flow: probe the
// conversation's devices, claim prekey bundles, fan out the encryption and
// post the per-device payloads.
package conversation
