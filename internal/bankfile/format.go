// Package bankfile implements the self-describing ".bank" snapshot
// format: a 32-byte header, bank metadata, and per-entry records, each
// individually CRC32-checked, written atomically via temp-file-then-
// rename. Generalized from the teacher's index.go (WriteTo/ReadFrom,
// field-by-field binary encode, trailing-checksum shape) and
// objects/storage.go (temp-file-then-rename).
package bankfile

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"github.com/neuromem/bankcore/internal/bankerr"
	"github.com/neuromem/bankcore/internal/types"
)

const (
	magic         = "BANK"
	formatVersion = uint16(1)
	headerSize    = 32
)

// FlagVectorIndexZstd marks the optional vector-index blob as
// zstd-compressed.
const FlagVectorIndexZstd uint16 = 1 << 0

// header is the on-disk 32-byte file header.
type header struct {
	Version           uint16
	Flags             uint16
	EntryCount        uint32
	EdgeTableOffset   uint32
	VectorIndexOffset uint32
	PayloadXXHash64   uint64
	Reserved          uint32
}

func encodeHeader(h header) []byte {
	buf := make([]byte, headerSize)
	copy(buf[0:4], magic)
	binary.LittleEndian.PutUint16(buf[4:6], h.Version)
	binary.LittleEndian.PutUint16(buf[6:8], h.Flags)
	binary.LittleEndian.PutUint32(buf[8:12], h.EntryCount)
	binary.LittleEndian.PutUint32(buf[12:16], h.EdgeTableOffset)
	binary.LittleEndian.PutUint32(buf[16:20], h.VectorIndexOffset)
	binary.LittleEndian.PutUint64(buf[20:28], h.PayloadXXHash64)
	binary.LittleEndian.PutUint32(buf[28:32], h.Reserved)
	return buf
}

func decodeHeader(buf []byte) (header, error) {
	var h header
	if len(buf) < headerSize {
		return h, fmt.Errorf("bankfile: header truncated")
	}
	if string(buf[0:4]) != magic {
		return h, fmt.Errorf("bankfile: bad magic: %w", bankerr.ErrCorruption)
	}
	h.Version = binary.LittleEndian.Uint16(buf[4:6])
	if h.Version != formatVersion {
		return h, fmt.Errorf("bankfile: unsupported version %d: %w", h.Version, bankerr.ErrCorruption)
	}
	h.Flags = binary.LittleEndian.Uint16(buf[6:8])
	h.EntryCount = binary.LittleEndian.Uint32(buf[8:12])
	h.EdgeTableOffset = binary.LittleEndian.Uint32(buf[12:16])
	h.VectorIndexOffset = binary.LittleEndian.Uint32(buf[16:20])
	h.PayloadXXHash64 = binary.LittleEndian.Uint64(buf[20:28])
	h.Reserved = binary.LittleEndian.Uint32(buf[28:32])
	return h, nil
}

// bankMeta is the fixed preamble describing the bank itself, following
// the header.
type bankMeta struct {
	BankID       types.BankId
	VectorWidth  uint16
	MaxEntries   uint32
	NextEntrySeq uint64
	Name         string
}

func encodeBankMeta(m bankMeta) []byte {
	nameBytes := []byte(m.Name)
	buf := make([]byte, 0, 8+2+4+8+2+len(nameBytes)+8)
	buf = appendU64(buf, uint64(m.BankID))
	buf = appendU16(buf, m.VectorWidth)
	buf = appendU32(buf, m.MaxEntries)
	buf = appendU64(buf, m.NextEntrySeq)
	buf = appendU16(buf, uint16(len(nameBytes)))
	buf = append(buf, nameBytes...)
	return padTo8(buf)
}

func decodeBankMeta(data []byte) (bankMeta, int, error) {
	var m bankMeta
	if len(data) < 8+2+4+8+2 {
		return m, 0, fmt.Errorf("bankfile: metadata truncated")
	}
	off := 0
	m.BankID = types.BankId(binary.LittleEndian.Uint64(data[off:]))
	off += 8
	m.VectorWidth = binary.LittleEndian.Uint16(data[off:])
	off += 2
	m.MaxEntries = binary.LittleEndian.Uint32(data[off:])
	off += 4
	m.NextEntrySeq = binary.LittleEndian.Uint64(data[off:])
	off += 8
	nameLen := int(binary.LittleEndian.Uint16(data[off:]))
	off += 2
	if len(data) < off+nameLen {
		return m, 0, fmt.Errorf("bankfile: metadata name truncated")
	}
	m.Name = string(data[off : off+nameLen])
	off += nameLen
	off = padLen(off)
	return m, off, nil
}

func padTo8(buf []byte) []byte {
	for len(buf)%8 != 0 {
		buf = append(buf, 0)
	}
	return buf
}

func padLen(n int) int {
	for n%8 != 0 {
		n++
	}
	return n
}

func appendU16(buf []byte, v uint16) []byte {
	return append(buf, byte(v), byte(v>>8))
}

func appendU32(buf []byte, v uint32) []byte {
	return append(buf, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func appendU64(buf []byte, v uint64) []byte {
	return append(buf,
		byte(v), byte(v>>8), byte(v>>16), byte(v>>24),
		byte(v>>32), byte(v>>40), byte(v>>48), byte(v>>56))
}

// crc32Of returns the IEEE CRC32 of data, matching entrymodel's
// checksum algorithm.
func crc32Of(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}
