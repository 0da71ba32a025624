package gwire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/golang/snappy"
)

// Frame header bytes.
const (
	uncompressedHeader byte = 0
	snappyHeader       byte = 1
)

// DefaultMaxFrameSize bounds the decoded size of a single frame.
const DefaultMaxFrameSize = 4 << 20

var ErrFrameTooLarge = errors.New("frame too large")

// WriteFrame writes payload as a header byte, a varint length, and the body.
// The body is snappy-compressed when that makes it smaller.
func WriteFrame(w io.Writer, payload []byte) error {
	header := uncompressedHeader
	body := payload
	if c := snappy.Encode(nil, payload); len(c) < len(payload) {
		header = snappyHeader
		body = c
	}

	var buf bytes.Buffer
	buf.Grow(1 + binary.MaxVarintLen64 + len(body))
	buf.WriteByte(header)
	buf.Write(binary.AppendVarint(nil, int64(len(body))))
	buf.Write(body)

	if _, err := buf.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

// ReadFrame reads one frame written by [WriteFrame].
// Frames whose decoded payload would exceed maxSize are rejected
// before the payload is read or decompressed.
func ReadFrame(r io.Reader, maxSize int) ([]byte, error) {
	br := byteReader{r: r}

	header, err := br.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("failed to read frame header: %w", err)
	}
	if header != uncompressedHeader && header != snappyHeader {
		return nil, fmt.Errorf("unrecognized frame header byte %x", header)
	}

	size64, err := binary.ReadVarint(br)
	if err != nil {
		return nil, fmt.Errorf("failed to read frame size: %w", err)
	}
	if size64 < 0 {
		return nil, fmt.Errorf("invalid negative frame size %d", size64)
	}

	limit := int64(maxSize)
	if header == snappyHeader {
		limit = int64(snappy.MaxEncodedLen(maxSize))
	}
	if size64 > limit {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit %d", ErrFrameTooLarge, size64, limit)
	}

	body := make([]byte, size64)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("failed to read frame body: %w", err)
	}

	if header == uncompressedHeader {
		return body, nil
	}

	uSize, err := snappy.DecodedLen(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read decoded length: %w", err)
	}
	if uSize > maxSize {
		return nil, fmt.Errorf("%w: decodes to %d bytes, limit %d", ErrFrameTooLarge, uSize, maxSize)
	}

	out, err := snappy.Decode(nil, body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode snappy frame: %w", err)
	}
	return out, nil
}

// byteReader reads one byte at a time so that varint parsing
// never consumes bytes belonging to the frame body.
type byteReader struct {
	r   io.Reader
	buf [1]byte
}

func (b byteReader) ReadByte() (byte, error) {
	if _, err := io.ReadFull(b.r, b.buf[:]); err != nil {
		return 0, err
	}
	return b.buf[0], nil
}

// WriteMessage marshals m and writes it as a frame.
func WriteMessage(w io.Writer, m Message) error {
	b, err := Marshal(m)
	if err != nil {
		return err
	}
	return WriteFrame(w, b)
}

// ReadMessage reads a frame and unmarshals the message inside it.
func ReadMessage(r io.Reader, maxSize int) (Message, error) {
	b, err := ReadFrame(r, maxSize)
	if err != nil {
		return Message{}, err
	}
	return Unmarshal(b)
}
