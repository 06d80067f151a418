// Package genericmsg encodes the protobuf message envelope that travels
// inside OTR ciphertexts.
//
// The schema is tiny and stable, so the codec works directly on the wire
// format instead of carrying generated bindings:
//
//	message GenericMessage {
//	  string message_id = 1;
//	  Text   text       = 2;
//	}
//	message Text {
//	  string content = 1;
//	}
package genericmsg
