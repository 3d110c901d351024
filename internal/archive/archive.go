// Package archive implements the little-endian binary encoding of partition
// snapshots: fixed-width integers, length-prefixed strings and slices,
// size-prefixed portable roaring bitmaps, and a streaming CRC32 over the
// record payload.
package archive

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"hash/crc32"
	"io"

	"github.com/RoaringBitmap/roaring/v2"
)

// MaxLen bounds every length field read from an archive. Larger values mean
// a corrupted or hostile file, not a larger database.
const MaxLen = 1 << 28

// ErrChecksum is returned when the payload CRC does not match.
var ErrChecksum = errors.New("archive: checksum mismatch")

// Writer encodes archive records. Errors are sticky: after the first failed
// write every call is a no-op and Err returns the failure.
type Writer struct {
	w   io.Writer
	h   hash.Hash32
	err error
	buf [8]byte
}

// NewWriter creates a Writer on w.
func NewWriter(w io.Writer) *Writer { return &Writer{w: w} }

// Err returns the first write error.
func (w *Writer) Err() error { return w.err }

// BeginChecksum starts CRC32 accumulation over everything written next.
func (w *Writer) BeginChecksum() { w.h = crc32.NewIEEE() }

// EndChecksum appends the accumulated CRC32 and stops accumulation.
func (w *Writer) EndChecksum() {
	if w.h == nil {
		return
	}
	sum := w.h.Sum32()
	w.h = nil
	w.U32(sum)
}

func (w *Writer) write(b []byte) {
	if w.err != nil {
		return
	}
	if _, err := w.w.Write(b); err != nil {
		w.err = err
		return
	}
	if w.h != nil {
		w.h.Write(b)
	}
}

// Raw writes b verbatim.
func (w *Writer) Raw(b []byte) { w.write(b) }

// U8 writes one byte.
func (w *Writer) U8(v uint8) {
	w.buf[0] = v
	w.write(w.buf[:1])
}

// U16 writes a little-endian uint16.
func (w *Writer) U16(v uint16) {
	binary.LittleEndian.PutUint16(w.buf[:2], v)
	w.write(w.buf[:2])
}

// U32 writes a little-endian uint32.
func (w *Writer) U32(v uint32) {
	binary.LittleEndian.PutUint32(w.buf[:4], v)
	w.write(w.buf[:4])
}

// U64 writes a little-endian uint64.
func (w *Writer) U64(v uint64) {
	binary.LittleEndian.PutUint64(w.buf[:8], v)
	w.write(w.buf[:8])
}

// I64 writes a little-endian int64.
func (w *Writer) I64(v int64) { w.U64(uint64(v)) }

// Str writes a length-prefixed string.
func (w *Writer) Str(s string) {
	w.U32(uint32(len(s)))
	w.write([]byte(s))
}

// U32s writes a length-prefixed uint32 slice.
func (w *Writer) U32s(vs []uint32) {
	w.U32(uint32(len(vs)))
	for _, v := range vs {
		w.U32(v)
	}
}

// U64s writes a length-prefixed uint64 slice.
func (w *Writer) U64s(vs []uint64) {
	w.U32(uint32(len(vs)))
	for _, v := range vs {
		w.U64(v)
	}
}

// I64s writes a length-prefixed int64 slice.
func (w *Writer) I64s(vs []int64) {
	w.U32(uint32(len(vs)))
	for _, v := range vs {
		w.I64(v)
	}
}

// Bitmap writes the serialized size followed by the portable roaring blob.
func (w *Writer) Bitmap(bm *roaring.Bitmap) {
	if w.err != nil {
		return
	}
	w.U64(bm.GetSerializedSizeInBytes())
	if _, err := bm.WriteTo(hashedWriter{w}); err != nil {
		w.err = err
	}
}

// hashedWriter routes a bitmap's own WriteTo through the sticky writer so
// the checksum sees it.
type hashedWriter struct{ w *Writer }

func (hw hashedWriter) Write(b []byte) (int, error) {
	hw.w.write(b)
	if hw.w.err != nil {
		return 0, hw.w.err
	}
	return len(b), nil
}

// Reader decodes archive records with the same sticky-error discipline.
type Reader struct {
	r   io.Reader
	h   hash.Hash32
	err error
	buf [8]byte
}

// NewReader creates a Reader on r.
func NewReader(r io.Reader) *Reader { return &Reader{r: r} }

// Err returns the first read error.
func (r *Reader) Err() error { return r.err }

// BeginChecksum starts CRC32 accumulation over everything read next.
func (r *Reader) BeginChecksum() { r.h = crc32.NewIEEE() }

// VerifyChecksum reads the stored CRC32 and compares it with the
// accumulated one.
func (r *Reader) VerifyChecksum() error {
	if r.h == nil || r.err != nil {
		return r.err
	}
	want := r.h.Sum32()
	r.h = nil
	got := r.U32()
	if r.err != nil {
		return r.err
	}
	if got != want {
		r.err = ErrChecksum
		return fmt.Errorf("%w: stored %08x, computed %08x", ErrChecksum, got, want)
	}
	return nil
}

func (r *Reader) read(b []byte) {
	if r.err != nil {
		return
	}
	if _, err := io.ReadFull(r.r, b); err != nil {
		r.err = err
		return
	}
	if r.h != nil {
		r.h.Write(b)
	}
}

// Raw fills b verbatim.
func (r *Reader) Raw(b []byte) { r.read(b) }

// U8 reads one byte.
func (r *Reader) U8() uint8 {
	r.read(r.buf[:1])
	return r.buf[0]
}

// U16 reads a little-endian uint16.
func (r *Reader) U16() uint16 {
	r.read(r.buf[:2])
	return binary.LittleEndian.Uint16(r.buf[:2])
}

// U32 reads a little-endian uint32.
func (r *Reader) U32() uint32 {
	r.read(r.buf[:4])
	return binary.LittleEndian.Uint32(r.buf[:4])
}

// U64 reads a little-endian uint64.
func (r *Reader) U64() uint64 {
	r.read(r.buf[:8])
	return binary.LittleEndian.Uint64(r.buf[:8])
}

// I64 reads a little-endian int64.
func (r *Reader) I64() int64 { return int64(r.U64()) }

// Len reads a length field and validates it against MaxLen.
func (r *Reader) Len() int {
	n := r.U32()
	if r.err == nil && n > MaxLen {
		r.err = fmt.Errorf("archive: implausible length %d", n)
	}
	return int(n)
}

// Str reads a length-prefixed string.
func (r *Reader) Str() string {
	n := r.Len()
	if r.err != nil || n == 0 {
		return ""
	}
	b := make([]byte, n)
	r.read(b)
	return string(b)
}

// U32s reads a length-prefixed uint32 slice.
func (r *Reader) U32s() []uint32 {
	n := r.Len()
	if r.err != nil {
		return nil
	}
	vs := make([]uint32, n)
	for i := range vs {
		vs[i] = r.U32()
	}
	return vs
}

// U64s reads a length-prefixed uint64 slice.
func (r *Reader) U64s() []uint64 {
	n := r.Len()
	if r.err != nil {
		return nil
	}
	vs := make([]uint64, n)
	for i := range vs {
		vs[i] = r.U64()
	}
	return vs
}

// I64s reads a length-prefixed int64 slice.
func (r *Reader) I64s() []int64 {
	n := r.Len()
	if r.err != nil {
		return nil
	}
	vs := make([]int64, n)
	for i := range vs {
		vs[i] = r.I64()
	}
	return vs
}

// Bitmap reads a size-prefixed portable roaring blob.
func (r *Reader) Bitmap() *roaring.Bitmap {
	size := r.U64()
	if r.err != nil {
		return nil
	}
	if size > MaxLen {
		r.err = fmt.Errorf("archive: implausible bitmap size %d", size)
		return nil
	}
	b := make([]byte, size)
	r.read(b)
	if r.err != nil {
		return nil
	}
	bm := roaring.New()
	if err := bm.UnmarshalBinary(b); err != nil {
		r.err = err
		return nil
	}
	return bm
}
