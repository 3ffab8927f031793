// Package wire defines the viewer protocol: the Message and Response tagged
// unions, their payload encoding, and the length-prefixed frame that carries
// one payload over a stream.
//
// A frame is an 8-byte little-endian length followed by exactly that many
// payload bytes. Payloads use the protobuf wire format (tag + wire type per
// field) so the variant tag, array shapes and element types are recoverable
// without a schema. Decoding is strict: unknown variants or fields, shape
// mismatches and trailing bytes are ErrDecode; short or oversized frames are
// ErrFraming. Both are fatal to the connection that produced them.
package wire
