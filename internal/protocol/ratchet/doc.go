// Package ratchet implements the Double Ratchet that protects an
// established session.
//
// State lives in domain.RatchetState and is owned by the session store;
// this package only advances it. Encrypt steps the sending chain (and
// performs a DH ratchet step on the first send after responding); Decrypt
// handles skipped message keys, performs a DH ratchet step when a new remote
// ratchet public appears, then opens the message.
//
// Chains advance monotonically. A bounded store of skipped message keys
// lets late messages from the current chain still decrypt, while a replayed
// message finds its key consumed and fails authentication. Callers must
// serialize calls per session; the state is not safe for concurrent
// mutation.
package ratchet
