package journal

import (
	"bufio"
	"encoding/binary"
	"hash/crc32"
	"os"
)

// Sink is what a DataBank appends mutation records to. A *Writer
// implements it; tests can use a stub.
type Sink interface {
	Append(rec Record) error
}

// Writer is a single-writer, buffered append log. Append buffers the
// record; Flush forces it to the OS; Close fsyncs and closes the
// underlying file. Per §4.5, a successful mutation appends exactly
// one record before the caller observes the mutation as committed —
// callers should Flush after each Append if they need that guarantee
// to survive an immediate crash.
type Writer struct {
	file *os.File
	buf  *bufio.Writer
}

// OpenWriter opens (creating if absent) the journal file at path for
// appending.
func OpenWriter(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	return &Writer{file: f, buf: bufio.NewWriter(f)}, nil
}

// Append serializes and appends one record, each field little-endian,
// with a trailing CRC32 over kind+bank_id+entry_id+payload_len+payload.
func (w *Writer) Append(rec Record) error {
	header := make([]byte, 0, 1+8+8+4)
	header = append(header, byte(rec.Kind))
	header = appendU64(header, uint64(rec.BankID))
	header = appendU64(header, uint64(rec.EntryID))
	header = appendU32(header, uint32(len(rec.Payload)))

	sum := crc32.NewIEEE()
	_, _ = sum.Write(header)
	_, _ = sum.Write(rec.Payload)

	if _, err := w.buf.Write(header); err != nil {
		return err
	}
	if _, err := w.buf.Write(rec.Payload); err != nil {
		return err
	}
	var crcBuf [4]byte
	binary.LittleEndian.PutUint32(crcBuf[:], sum.Sum32())
	_, err := w.buf.Write(crcBuf[:])
	return err
}

// Flush forces buffered writes to the OS.
func (w *Writer) Flush() error {
	return w.buf.Flush()
}

// Close flushes, fsyncs and closes the journal file.
func (w *Writer) Close() error {
	if err := w.Flush(); err != nil {
		return err
	}
	if err := w.file.Sync(); err != nil {
		return err
	}
	return w.file.Close()
}

// Truncate resets the journal file to zero length, called once every
// dirty bank has snapshotted successfully.
func Truncate(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
