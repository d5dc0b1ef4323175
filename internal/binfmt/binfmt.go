// Package binfmt implements the checksummed framing shared by the ledger,
// run segments and snapshots.
//
// Frame layout:
//
//	Magic    (4 bytes)
//	Version  (4 bytes)
//	Checksum (4 bytes) - CRC32 of payload
//	Length   (4 bytes)
//	Payload  (Length bytes)
package binfmt

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
)

// ErrCorrupt is returned when a frame fails validation.
var ErrCorrupt = errors.New("corrupt frame")

const headerSize = 16

// Frame wraps payload in a checksummed header.
func Frame(magic, version uint32, payload []byte) []byte {
	out := make([]byte, headerSize, headerSize+len(payload))
	binary.LittleEndian.PutUint32(out[0:4], magic)
	binary.LittleEndian.PutUint32(out[4:8], version)
	binary.LittleEndian.PutUint32(out[8:12], crc32.ChecksumIEEE(payload))
	binary.LittleEndian.PutUint32(out[12:16], uint32(len(payload)))
	return append(out, payload...)
}

// Unframe validates the header and returns the version and payload.
func Unframe(magic uint32, data []byte) (uint32, []byte, error) {
	if len(data) < headerSize {
		return 0, nil, fmt.Errorf("%w: short header", ErrCorrupt)
	}
	if got := binary.LittleEndian.Uint32(data[0:4]); got != magic {
		return 0, nil, fmt.Errorf("%w: invalid magic: %x", ErrCorrupt, got)
	}
	version := binary.LittleEndian.Uint32(data[4:8])
	checksum := binary.LittleEndian.Uint32(data[8:12])
	length := binary.LittleEndian.Uint32(data[12:16])

	payload := data[headerSize:]
	if uint64(len(payload)) != uint64(length) {
		return 0, nil, fmt.Errorf("%w: length %d, have %d", ErrCorrupt, length, len(payload))
	}
	if crc32.ChecksumIEEE(payload) != checksum {
		return 0, nil, fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}
	return version, payload, nil
}

// Buffer appends and consumes little-endian fields. The first error sticks;
// later calls are no-ops.
type Buffer struct {
	buf []byte
	pos int
	err error
}

// NewBuffer returns a Buffer reading from or appending to b.
func NewBuffer(b []byte) *Buffer {
	return &Buffer{buf: b}
}

// Bytes returns the written bytes.
func (p *Buffer) Bytes() []byte { return p.buf }

// Err returns the first error.
func (p *Buffer) Err() error { return p.err }

// Remaining returns the number of unread bytes.
func (p *Buffer) Remaining() int { return len(p.buf) - p.pos }

func (p *Buffer) WriteUint8(v uint8) {
	if p.err != nil {
		return
	}
	p.buf = append(p.buf, v)
}

func (p *Buffer) WriteUint32(v uint32) {
	if p.err != nil {
		return
	}
	p.buf = binary.LittleEndian.AppendUint32(p.buf, v)
}

func (p *Buffer) WriteUint64(v uint64) {
	if p.err != nil {
		return
	}
	p.buf = binary.LittleEndian.AppendUint64(p.buf, v)
}

func (p *Buffer) WriteString(s string) {
	if p.err != nil {
		return
	}
	if len(s) > 65535 {
		p.err = fmt.Errorf("string too long: %d", len(s))
		return
	}
	p.buf = binary.LittleEndian.AppendUint16(p.buf, uint16(len(s)))
	p.buf = append(p.buf, s...)
}

// WriteBlob writes a length-prefixed byte slice.
func (p *Buffer) WriteBlob(b []byte) {
	p.WriteUint32(uint32(len(b)))
	if p.err != nil {
		return
	}
	p.buf = append(p.buf, b...)
}

func (p *Buffer) need(n int) bool {
	if p.err != nil {
		return false
	}
	if p.pos+n > len(p.buf) {
		p.err = io.ErrUnexpectedEOF
		return false
	}
	return true
}

func (p *Buffer) ReadUint8() uint8 {
	if !p.need(1) {
		return 0
	}
	v := p.buf[p.pos]
	p.pos++
	return v
}

func (p *Buffer) ReadUint32() uint32 {
	if !p.need(4) {
		return 0
	}
	v := binary.LittleEndian.Uint32(p.buf[p.pos:])
	p.pos += 4
	return v
}

func (p *Buffer) ReadUint64() uint64 {
	if !p.need(8) {
		return 0
	}
	v := binary.LittleEndian.Uint64(p.buf[p.pos:])
	p.pos += 8
	return v
}

func (p *Buffer) ReadString() string {
	if !p.need(2) {
		return ""
	}
	l := int(binary.LittleEndian.Uint16(p.buf[p.pos:]))
	p.pos += 2
	if !p.need(l) {
		return ""
	}
	s := string(p.buf[p.pos : p.pos+l])
	p.pos += l
	return s
}

// ReadBlob reads a length-prefixed byte slice. The result aliases the buffer.
func (p *Buffer) ReadBlob() []byte {
	l := int(p.ReadUint32())
	if !p.need(l) {
		return nil
	}
	b := p.buf[p.pos : p.pos+l]
	p.pos += l
	return b
}
