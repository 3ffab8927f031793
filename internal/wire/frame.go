package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
)

const (
	// FrameHeaderSize is the width of the little-endian length prefix.
	FrameHeaderSize = 8
	// MaxFrameSize caps the payload length a reader will allocate for.
	MaxFrameSize = 512 << 20
)

var (
	// ErrFraming reports a truncated or malformed frame.
	ErrFraming = errors.New("wire: framing error")
	// ErrFrameTooLarge reports a length prefix above MaxFrameSize.
	ErrFrameTooLarge = fmt.Errorf("%w: frame too large", ErrFraming)
)

// Frame returns length || payload.
func Frame(payload []byte) []byte {
	out := make([]byte, FrameHeaderSize+len(payload))
	binary.LittleEndian.PutUint64(out, uint64(len(payload)))
	copy(out[FrameHeaderSize:], payload)
	return out
}

// WriteFrame writes one length-prefixed payload.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxFrameSize {
		return fmt.Errorf("%w: payload is %d bytes", ErrFrameTooLarge, len(payload))
	}
	var header [FrameHeaderSize]byte
	binary.LittleEndian.PutUint64(header[:], uint64(len(payload)))
	bufs := net.Buffers{header[:], payload}
	if _, err := bufs.WriteTo(w); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// ReadFrame reads one length-prefixed payload. It returns io.EOF only when
// the stream ends cleanly before any prefix byte.
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [FrameHeaderSize]byte
	n, err := io.ReadFull(r, header[:])
	switch {
	case err == nil:
	case errors.Is(err, io.EOF) && n == 0:
		return nil, io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		return nil, fmt.Errorf("%w: stream ended after %d of %d prefix bytes", ErrFraming, n, FrameHeaderSize)
	default:
		return nil, fmt.Errorf("read frame prefix: %w", err)
	}

	size := binary.LittleEndian.Uint64(header[:])
	if size > MaxFrameSize {
		return nil, fmt.Errorf("%w: length %d exceeds %d", ErrFrameTooLarge, size, MaxFrameSize)
	}
	payload := make([]byte, size)
	if n, err := io.ReadFull(r, payload); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: stream ended after %d of %d payload bytes", ErrFraming, n, size)
		}
		return nil, fmt.Errorf("read frame payload: %w", err)
	}
	return payload, nil
}

// WriteMessage encodes and frames msg.
func WriteMessage(w io.Writer, msg Message) error {
	payload, err := EncodeMessage(msg)
	if err != nil {
		return err
	}
	return WriteFrame(w, payload)
}

// ReadMessage reads and decodes one framed Message.
func ReadMessage(r io.Reader) (Message, error) {
	payload, err := ReadFrame(r)
	if err != nil {
		return nil, err
	}
	return DecodeMessage(payload)
}

// WriteResponse encodes and frames resp.
func WriteResponse(w io.Writer, resp Response) error {
	payload, err := EncodeResponse(resp)
	if err != nil {
		return err
	}
	return WriteFrame(w, payload)
}

// ReadResponse reads and decodes one framed Response.
func ReadResponse(r io.Reader) (Response, error) {
	payload, err := ReadFrame(r)
	if err != nil {
		return nil, err
	}
	return DecodeResponse(payload)
}
