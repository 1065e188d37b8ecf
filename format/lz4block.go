package format

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/pierrec/lz4/v4"
)

// defaultBlockSize is the uncompressed size threshold at which a
// buffered block is flushed. This mirrors the teacher's (now retired)
// encoding/bgzf.Writer, which accumulated writes into a bytes.Buffer
// and flushed one gzip block at a time; here the fixed unit is an LZ4
// block, framed as [rawLen uint32][compLen uint32][payload] so that a
// sequential reader can cross block boundaries transparently (spec
// §4.2's compressed-stream contract). compLen==rawLen marks a block
// stored raw because it did not compress.
const defaultBlockSize = 1 << 20

// lz4BlockWriter accumulates uncompressed bytes and flushes them as
// LZ4-compressed, length-prefixed blocks.
type lz4BlockWriter struct {
	w         io.Writer
	blockSize int
	buf       bytes.Buffer
	compBuf   []byte
}

func newLZ4BlockWriter(w io.Writer) *lz4BlockWriter {
	return &lz4BlockWriter{w: w, blockSize: defaultBlockSize}
}

func (w *lz4BlockWriter) Write(p []byte) (int, error) {
	n, _ := w.buf.Write(p)
	for w.buf.Len() >= w.blockSize {
		chunk := w.buf.Next(w.blockSize)
		if err := w.writeBlock(chunk); err != nil {
			return n, err
		}
	}
	return n, nil
}

// writeBlock frames a single chunk as [rawLen u32][compLen u32][payload].
func (w *lz4BlockWriter) writeBlock(chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}
	maxSize := lz4.CompressBlockBound(len(chunk))
	if cap(w.compBuf) < maxSize {
		w.compBuf = make([]byte, maxSize)
	}
	var c lz4.Compressor
	n, err := c.CompressBlock(chunk, w.compBuf[:maxSize])
	if err != nil {
		return err
	}
	var hdr [8]byte
	binary.LittleEndian.PutUint32(hdr[0:4], uint32(len(chunk)))
	if n == 0 || n >= len(chunk) {
		// Incompressible: store raw, compLen == rawLen.
		binary.LittleEndian.PutUint32(hdr[4:8], uint32(len(chunk)))
		if _, err := w.w.Write(hdr[:]); err != nil {
			return err
		}
		_, err := w.w.Write(chunk)
		return err
	}
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(n))
	if _, err := w.w.Write(hdr[:]); err != nil {
		return err
	}
	_, err = w.w.Write(w.compBuf[:n])
	return err
}

// Flush writes out any buffered-but-not-yet-flushed bytes as a final,
// possibly undersized block.
func (w *lz4BlockWriter) Flush() error {
	for w.buf.Len() > 0 {
		n := w.buf.Len()
		if n > w.blockSize {
			n = w.blockSize
		}
		chunk := w.buf.Next(n)
		if err := w.writeBlock(chunk); err != nil {
			return err
		}
	}
	return nil
}

// Close flushes any remaining buffered bytes. Writers must call this
// before closing the underlying file; failing to do so is a fatal
// error per spec §4.2.
func (w *lz4BlockWriter) Close() error {
	return w.Flush()
}

// lz4BlockReader is the dual of lz4BlockWriter: it decodes blocks on
// demand and serves them through Read, so callers can treat it as an
// ordinary io.Reader regardless of block boundaries.
type lz4BlockReader struct {
	r       io.Reader
	pending bytes.Buffer
	rawBuf  []byte
}

func newLZ4BlockReader(r io.Reader) *lz4BlockReader {
	return &lz4BlockReader{r: r}
}

func (r *lz4BlockReader) Read(p []byte) (int, error) {
	for r.pending.Len() == 0 {
		if err := r.fillOne(); err != nil {
			return 0, err
		}
	}
	return r.pending.Read(p)
}

func (r *lz4BlockReader) fillOne() error {
	var hdr [8]byte
	if _, err := io.ReadFull(r.r, hdr[:]); err != nil {
		return err // io.EOF propagates cleanly at a block boundary
	}
	rawLen := binary.LittleEndian.Uint32(hdr[0:4])
	compLen := binary.LittleEndian.Uint32(hdr[4:8])
	body := make([]byte, compLen)
	if _, err := io.ReadFull(r.r, body); err != nil {
		return err
	}
	if compLen == rawLen {
		r.pending.Write(body)
		return nil
	}
	if cap(r.rawBuf) < int(rawLen) {
		r.rawBuf = make([]byte, rawLen)
	}
	n, err := lz4.UncompressBlock(body, r.rawBuf[:rawLen])
	if err != nil {
		return err
	}
	r.pending.Write(r.rawBuf[:n])
	return nil
}
