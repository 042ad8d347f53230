// internal/utils/binary/binary.go
package binary

import (
	"encoding/binary"
	"errors"

	"github.com/gagliardetto/solana-go"
)

// ErrShortBuffer возвращается, когда данных меньше, чем требует layout.
var ErrShortBuffer = errors.New("binary: buffer too short for layout")

// Writer пишет поля фиксированной ширины в little-endian в заранее выделенный буфер.
type Writer struct {
	buf []byte
	off int
}

// NewWriter allocates a zeroed buffer of exactly size bytes.
func NewWriter(size int) *Writer {
	return &Writer{buf: make([]byte, size)}
}

func (w *Writer) Raw(b []byte) {
	copy(w.buf[w.off:w.off+len(b)], b)
	w.off += len(b)
}

func (w *Writer) Uint8(v uint8) {
	w.buf[w.off] = v
	w.off++
}

func (w *Writer) Bool(v bool) {
	if v {
		w.Uint8(1)
		return
	}
	w.Uint8(0)
}

func (w *Writer) Uint16(v uint16) {
	binary.LittleEndian.PutUint16(w.buf[w.off:w.off+2], v)
	w.off += 2
}

func (w *Writer) Uint64(v uint64) {
	binary.LittleEndian.PutUint64(w.buf[w.off:w.off+8], v)
	w.off += 8
}

// PubKey writes a 32-byte Solana public key.
func (w *Writer) PubKey(key solana.PublicKey) {
	w.Raw(key[:])
}

// Skip leaves n zero bytes (padding / reserved space).
func (w *Writer) Skip(n int) {
	w.off += n
}

// Offset returns the current write position.
func (w *Writer) Offset() int {
	return w.off
}

// Bytes returns the underlying buffer.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Reader читает поля фиксированной ширины. Первая ошибка запоминается,
// последующие чтения возвращают нулевые значения.
type Reader struct {
	buf []byte
	off int
	err error
}

// NewReader wraps data for sequential decoding.
func NewReader(data []byte) *Reader {
	return &Reader{buf: data}
}

func (r *Reader) need(n int) bool {
	if r.err != nil {
		return false
	}
	if len(r.buf)-r.off < n {
		r.err = ErrShortBuffer
		return false
	}
	return true
}

// Raw returns a copy of the next n bytes.
func (r *Reader) Raw(n int) []byte {
	if !r.need(n) {
		return make([]byte, n)
	}
	out := make([]byte, n)
	copy(out, r.buf[r.off:r.off+n])
	r.off += n
	return out
}

func (r *Reader) Uint8() uint8 {
	if !r.need(1) {
		return 0
	}
	v := r.buf[r.off]
	r.off++
	return v
}

// Bool reads a boolean (0 = false, non-zero = true).
func (r *Reader) Bool() bool {
	return r.Uint8() != 0
}

func (r *Reader) Uint16() uint16 {
	if !r.need(2) {
		return 0
	}
	v := binary.LittleEndian.Uint16(r.buf[r.off : r.off+2])
	r.off += 2
	return v
}

func (r *Reader) Uint64() uint64 {
	if !r.need(8) {
		return 0
	}
	v := binary.LittleEndian.Uint64(r.buf[r.off : r.off+8])
	r.off += 8
	return v
}

// PubKey reads a Solana public key.
func (r *Reader) PubKey() solana.PublicKey {
	return solana.PublicKeyFromBytes(r.Raw(32))
}

// Skip advances past n bytes.
func (r *Reader) Skip(n int) {
	if r.need(n) {
		r.off += n
	}
}

// Offset returns the current read position.
func (r *Reader) Offset() int {
	return r.off
}

// Err returns the first error encountered.
func (r *Reader) Err() error {
	return r.err
}
