// Package format implements the partition file envelope shared by
// every on-disk artifact the pipeline produces: count files, matrix
// files, hash files, bit-vector dumps and histograms (spec §4.2).
//
// Every file opens with a fixed binary prefix (magic, kind, version,
// compressed flag), followed by a gob-encoded kind-specific header
// blob, followed by a body of fixed-stride records, either written
// raw or LZ4-block-framed (format/lz4block.go). Writers and readers
// are generic over the record stride so all eight kinds in spec
// §4.2's table share one implementation (spec §9's "monomorphized
// lazy sequence" note).
package format

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/gob"
	"io"

	"github.com/grailbio/base/file"
	"github.com/kmtricks-go/kmtricks/kerrors"
)

// Magic is the fixed 8-byte envelope signature. Any file not starting
// with this value is rejected as a FormatError (spec §4.2).
const Magic uint64 = 0x6b6d7472_69636b73 // "kmtricks" interpreted as two 32-bit halves

// FormatVersion is bumped whenever the envelope or any kind-specific
// header layout changes incompatibly.
const FormatVersion uint32 = 1

const prefixSize = 8 + 1 + 4 + 1 + 2 // magic + kind + version + compressed + pad

// Writer writes one partition file: the envelope prefix, the gob
// header blob, and a stream of fixed-size records.
type Writer struct {
	f          file.File
	raw        io.Writer
	body       io.Writer
	lz4w       *lz4BlockWriter
	recordSize int
	path       string
}

// Create opens path for writing and emits the envelope prefix and
// header for kind. header is gob-encoded verbatim; if it implements
// Sized, its RecordSize() becomes the writer's fixed record stride
// (callers may also pass recordSize explicitly via CreateSized).
func Create(ctx context.Context, path string, kind Kind, header interface{}, compressed bool) (*Writer, error) {
	recordSize := 0
	if s, ok := header.(Sized); ok {
		recordSize = s.RecordSize()
	}
	return CreateSized(ctx, path, kind, header, compressed, recordSize)
}

// CreateSized is Create with an explicit record size, for headers
// that do not implement Sized.
func CreateSized(ctx context.Context, path string, kind Kind, header interface{}, compressed bool, recordSize int) (*Writer, error) {
	f, err := file.Create(ctx, path)
	if err != nil {
		return nil, &kerrors.IOError{Op: "create", Path: path, Err: err}
	}
	raw := f.Writer(ctx)

	var prefix [prefixSize]byte
	binary.LittleEndian.PutUint64(prefix[0:8], Magic)
	prefix[8] = byte(kind)
	binary.LittleEndian.PutUint32(prefix[9:13], FormatVersion)
	if compressed {
		prefix[13] = 1
	}
	if _, err := raw.Write(prefix[:]); err != nil {
		return nil, &kerrors.IOError{Op: "write prefix", Path: path, Err: err}
	}

	var hdrBuf bytes.Buffer
	if err := gob.NewEncoder(&hdrBuf).Encode(header); err != nil {
		return nil, &kerrors.FormatError{Op: "encode header", Path: path, Kind: kind.String(), Err: err}
	}
	var hdrLen [4]byte
	binary.LittleEndian.PutUint32(hdrLen[:], uint32(hdrBuf.Len()))
	if _, err := raw.Write(hdrLen[:]); err != nil {
		return nil, &kerrors.IOError{Op: "write header length", Path: path, Err: err}
	}
	if _, err := raw.Write(hdrBuf.Bytes()); err != nil {
		return nil, &kerrors.IOError{Op: "write header", Path: path, Err: err}
	}

	w := &Writer{f: f, raw: raw, recordSize: recordSize, path: path}
	if compressed {
		w.lz4w = newLZ4BlockWriter(raw)
		w.body = w.lz4w
	} else {
		w.body = raw
	}
	return w, nil
}

// WriteRecord appends one fixed-stride record. len(rec) must equal
// the writer's configured record size.
func (w *Writer) WriteRecord(rec []byte) error {
	if w.recordSize > 0 && len(rec) != w.recordSize {
		return &kerrors.FormatError{Op: "write record", Path: w.path, Err: errRecordSize(len(rec), w.recordSize)}
	}
	_, err := w.body.Write(rec)
	if err != nil {
		return &kerrors.IOError{Op: "write record", Path: w.path, Err: err}
	}
	return nil
}

// Close finalizes the compressed stream (if any) and closes the
// underlying file. Per spec §4.2, failing to flush/finalize is fatal.
func (w *Writer) Close(ctx context.Context) error {
	if w.lz4w != nil {
		if err := w.lz4w.Close(); err != nil {
			return &kerrors.IOError{Op: "flush lz4", Path: w.path, Err: err}
		}
	}
	if err := w.f.Close(ctx); err != nil {
		return &kerrors.IOError{Op: "close", Path: w.path, Err: err}
	}
	return nil
}

// Reader reads one partition file written by Writer.
type Reader struct {
	f          file.File
	body       io.Reader
	Kind       Kind
	Version    uint32
	Compressed bool
	recordSize int
	path       string
}

// Open reads the envelope prefix and gob-decodes the header into
// headerOut (a pointer), validating the kind matches wantKind. If
// headerOut implements Sized, its RecordSize() configures the
// Reader's record stride automatically.
func Open(ctx context.Context, path string, wantKind Kind, headerOut interface{}) (*Reader, error) {
	f, err := file.Open(ctx, path)
	if err != nil {
		return nil, &kerrors.IOError{Op: "open", Path: path, Err: err}
	}
	raw := f.Reader(ctx)

	var prefix [prefixSize]byte
	if _, err := io.ReadFull(raw, prefix[:]); err != nil {
		return nil, &kerrors.FormatError{Op: "read prefix", Path: path, Kind: wantKind.String(), Err: err}
	}
	magic := binary.LittleEndian.Uint64(prefix[0:8])
	if magic != Magic {
		return nil, &kerrors.FormatError{Op: "check magic", Path: path, Kind: wantKind.String(), Err: errBadMagic}
	}
	kind := Kind(prefix[8])
	if kind != wantKind {
		return nil, &kerrors.FormatError{Op: "check kind", Path: path, Kind: kind.String(), Err: errWrongKind}
	}
	version := binary.LittleEndian.Uint32(prefix[9:13])
	compressed := prefix[13] != 0

	var hdrLenBuf [4]byte
	if _, err := io.ReadFull(raw, hdrLenBuf[:]); err != nil {
		return nil, &kerrors.FormatError{Op: "read header length", Path: path, Kind: kind.String(), Err: err}
	}
	hdrLen := binary.LittleEndian.Uint32(hdrLenBuf[:])
	hdrBuf := make([]byte, hdrLen)
	if _, err := io.ReadFull(raw, hdrBuf); err != nil {
		return nil, &kerrors.FormatError{Op: "read header", Path: path, Kind: kind.String(), Err: err}
	}
	if err := gob.NewDecoder(bytes.NewReader(hdrBuf)).Decode(headerOut); err != nil {
		return nil, &kerrors.FormatError{Op: "decode header", Path: path, Kind: kind.String(), Err: err}
	}

	r := &Reader{f: f, Kind: kind, Version: version, Compressed: compressed, path: path}
	if s, ok := headerOut.(Sized); ok {
		r.recordSize = s.RecordSize()
	}
	if compressed {
		r.body = newLZ4BlockReader(raw)
	} else {
		r.body = raw
	}
	return r, nil
}

// ReadRecord reads the next fixed-stride record into buf (resizing it
// if necessary to the reader's configured record size). Returns false
// at a clean EOF.
func (r *Reader) ReadRecord(buf *[]byte) (bool, error) {
	if r.recordSize == 0 {
		return false, &kerrors.PipelineError{Op: "read record", Err: errNoRecordSize}
	}
	if cap(*buf) < r.recordSize {
		*buf = make([]byte, r.recordSize)
	}
	*buf = (*buf)[:r.recordSize]
	if _, err := io.ReadFull(r.body, *buf); err != nil {
		if err == io.EOF {
			return false, nil
		}
		return false, &kerrors.FormatError{Op: "read record", Path: r.path, Kind: r.Kind.String(), Err: err}
	}
	return true, nil
}

// Close closes the underlying file.
func (r *Reader) Close(ctx context.Context) error {
	if err := r.f.Close(ctx); err != nil {
		return &kerrors.IOError{Op: "close", Path: r.path, Err: err}
	}
	return nil
}
