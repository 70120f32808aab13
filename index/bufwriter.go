package index

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/csearch-go/csearch/internal/fs"
)

// bufWriter is a buffered writer over an index output or scratch file.
// It tracks the byte offset of everything written so section offsets can
// be recorded for the trailer and the per-section index tables.
type bufWriter struct {
	fsys fs.FileSystem
	file fs.File
	name string
	bw   *bufio.Writer
	off  uint32
	tmp  [10]byte
}

// bufCreate opens name for writing, truncating it. If name is empty, a
// scratch file is created instead; scratch files are removed by their
// owner once copied into the final index.
func bufCreate(fsys fs.FileSystem, name string) (*bufWriter, error) {
	if fsys == nil {
		fsys = fs.Default
	}
	var (
		f   fs.File
		err error
	)
	if name != "" {
		f, err = fsys.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o666)
	} else {
		f, err = fsys.CreateTemp("", "csearch-section")
	}
	if err != nil {
		return nil, err
	}
	return &bufWriter{
		fsys: fsys,
		file: f,
		name: f.Name(),
		bw:   bufio.NewWriterSize(f, 1<<16),
	}, nil
}

// offset returns the number of bytes written so far.
func (b *bufWriter) offset() uint32 { return b.off }

func (b *bufWriter) write(p []byte) error {
	n, err := b.bw.Write(p)
	b.off += uint32(n)
	return err
}

func (b *bufWriter) writeByte(c byte) error {
	if err := b.bw.WriteByte(c); err != nil {
		return err
	}
	b.off++
	return nil
}

func (b *bufWriter) writeString(s string) error {
	n, err := b.bw.WriteString(s)
	b.off += uint32(n)
	return err
}

// writeUint32 writes x big-endian.
func (b *bufWriter) writeUint32(x uint32) error {
	b.tmp[0] = byte(x >> 24)
	b.tmp[1] = byte(x >> 16)
	b.tmp[2] = byte(x >> 8)
	b.tmp[3] = byte(x)
	return b.write(b.tmp[:4])
}

// writeTrigram writes the 3-byte form of t.
func (b *bufWriter) writeTrigram(t uint32) error {
	b.tmp[0] = byte(t >> 16)
	b.tmp[1] = byte(t >> 8)
	b.tmp[2] = byte(t)
	return b.write(b.tmp[:3])
}

// writeUvarint writes x varint-coded.
func (b *bufWriter) writeUvarint(x uint64) error {
	n := copy(b.tmp[:], appendUvarint(b.tmp[:0], x))
	return b.write(b.tmp[:n])
}

// writeFileAt rewinds src and copies its full contents.
func (b *bufWriter) writeFileAt(src fs.File) error {
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return err
	}
	n, err := io.Copy(b.bw, src)
	b.off += uint32(n)
	return err
}

// flush drains the internal buffer to the file.
func (b *bufWriter) flush() error {
	return b.bw.Flush()
}

// finish flushes, fsyncs and closes the output.
func (b *bufWriter) finish() error {
	if err := b.bw.Flush(); err != nil {
		return err
	}
	if err := b.file.Sync(); err != nil {
		return err
	}
	return b.file.Close()
}

// discard closes and removes the file, ignoring errors. Used on abandon.
func (b *bufWriter) discard() {
	if b == nil {
		return
	}
	_ = b.file.Close()
	_ = b.fsys.Remove(b.name)
}

func (b *bufWriter) wrapErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("writing %s: %w", b.name, err)
}
