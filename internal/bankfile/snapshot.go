package bankfile

import (
	"encoding/binary"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zstd"

	"github.com/neuromem/bankcore/internal/bankerr"
	"github.com/neuromem/bankcore/internal/entrymodel"
	"github.com/neuromem/bankcore/internal/types"
	"github.com/neuromem/bankcore/internal/vectorindex"
)

// Meta is the bank-level metadata stored alongside the entry table.
type Meta struct {
	BankID       types.BankId
	VectorWidth  uint16
	MaxEntries   uint32
	NextEntrySeq uint64
	Name         string
}

// encodeIVFBlob serializes the optional persisted centroid set for an
// IVF index.
// Its presence is signaled by header.VectorIndexOffset != 0.
func encodeIVFBlob(centroids [][]int32, compress bool) ([]byte, uint16) {
	width := 0
	if len(centroids) > 0 {
		width = len(centroids[0])
	}
	buf := appendU32(nil, uint32(len(centroids)))
	buf = appendU16(buf, uint16(width))
	for _, c := range centroids {
		for _, v := range c {
			buf = appendU32(buf, uint32(int32(v)))
		}
	}

	var flags uint16
	if compress {
		enc, err := zstd.NewWriter(nil)
		if err == nil {
			compressed := enc.EncodeAll(buf, nil)
			enc.Close()
			if len(compressed) < len(buf) {
				buf = compressed
				flags = FlagVectorIndexZstd
			}
		}
	}
	return buf, flags
}

func decodeIVFBlob(data []byte, zstdCompressed bool) ([][]int32, error) {
	if zstdCompressed {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("bankfile: zstd reader: %w", err)
		}
		defer dec.Close()
		out, err := dec.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("bankfile: zstd decode: %w", err)
		}
		data = out
	}
	if len(data) < 6 {
		return nil, fmt.Errorf("bankfile: vector index blob truncated")
	}
	count := int(binary.LittleEndian.Uint32(data[0:4]))
	width := int(binary.LittleEndian.Uint16(data[4:6]))
	off := 6
	if len(data) < off+count*width*4 {
		return nil, fmt.Errorf("bankfile: vector index blob truncated")
	}
	centroids := make([][]int32, count)
	for i := 0; i < count; i++ {
		c := make([]int32, width)
		for j := 0; j < width; j++ {
			c[j] = int32(binary.LittleEndian.Uint32(data[off:]))
			off += 4
		}
		centroids[i] = c
	}
	return centroids, nil
}

// Save encodes meta, entries and (if index is an *vectorindex.IVFIndex
// with centroids) the IVF centroid blob into a single buffer, hashes
// the payload with xxhash64, and writes it atomically: temp file in
// the same directory, flush, fsync, rename, fsync the directory.
func Save(path string, meta Meta, entries []*entrymodel.BankEntry, index vectorindex.Index, compressIndex bool) error {
	metaBytes := encodeBankMeta(bankMeta{
		BankID:       meta.BankID,
		VectorWidth:  meta.VectorWidth,
		MaxEntries:   meta.MaxEntries,
		NextEntrySeq: meta.NextEntrySeq,
		Name:         meta.Name,
	})

	entryBytes := make([]byte, 0, len(entries)*64)
	for _, e := range entries {
		entryBytes = append(entryBytes, encodeEntry(e)...)
	}

	var indexBlob []byte
	var indexFlags uint16
	if ivf, ok := index.(*vectorindex.IVFIndex); ok {
		if centroids := ivf.Centroids(); len(centroids) > 0 {
			indexBlob, indexFlags = encodeIVFBlob(centroids, compressIndex)
		}
	}

	payload := make([]byte, 0, headerSize+len(metaBytes)+len(entryBytes)+len(indexBlob))
	edgeTableOffset := uint32(headerSize + len(metaBytes))
	var vectorIndexOffset uint32
	payload = append(payload, make([]byte, headerSize)...) // placeholder
	payload = append(payload, metaBytes...)
	payload = append(payload, entryBytes...)
	if len(indexBlob) > 0 {
		vectorIndexOffset = uint32(len(payload))
		payload = append(payload, indexBlob...)
	}

	h := header{
		Version:           formatVersion,
		Flags:             indexFlags,
		EntryCount:        uint32(len(entries)),
		EdgeTableOffset:   edgeTableOffset,
		VectorIndexOffset: vectorIndexOffset,
	}
	h.PayloadXXHash64 = xxhash.Sum64(payload[headerSize:])
	copy(payload[:headerSize], encodeHeader(h))

	return atomicWrite(path, payload)
}

func atomicWrite(path string, payload []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".bank-*.tmp")
	if err != nil {
		return fmt.Errorf("bankfile: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return fmt.Errorf("bankfile: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("bankfile: fsync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("bankfile: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("bankfile: rename temp file: %w", err)
	}

	dirFile, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("bankfile: open directory for fsync: %w", err)
	}
	defer dirFile.Close()
	if err := dirFile.Sync(); err != nil {
		return fmt.Errorf("bankfile: fsync directory: %w", err)
	}
	return nil
}

// Loaded is the result of a successful (possibly partial) snapshot
// load.
type Loaded struct {
	Meta      Meta
	Entries   []*entrymodel.BankEntry
	Centroids [][]int32 // nil if the file carried no IVF blob
	Skipped   int        // entries rejected for a failing CRC
}

// Load reads and verifies a snapshot file: magic, version, payload
// hash, then decodes bank metadata and every entry, admitting only
// those whose CRC32 matches. A failing entry CRC is logged and
// skipped; the rest of the bank still loads. A failing header or
// payload hash rejects the whole file.
func Load(path string, logger *log.Logger) (*Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("bankfile: read %s: %w", path, err)
	}
	if len(data) < headerSize {
		return nil, fmt.Errorf("bankfile: %s: %w", path, bankerr.ErrCorruption)
	}

	h, err := decodeHeader(data[:headerSize])
	if err != nil {
		return nil, fmt.Errorf("bankfile: %s: %w", path, err)
	}

	payload := data[headerSize:]
	if xxhash.Sum64(payload) != h.PayloadXXHash64 {
		return nil, fmt.Errorf("bankfile: %s: payload hash mismatch: %w", path, bankerr.ErrCorruption)
	}

	meta, metaLen, err := decodeBankMeta(payload)
	if err != nil {
		return nil, fmt.Errorf("bankfile: %s: %w", path, err)
	}

	entriesEnd := len(payload)
	if h.VectorIndexOffset != 0 {
		entriesEnd = int(h.VectorIndexOffset) - headerSize
	}

	result := &Loaded{Meta: Meta{
		BankID:       meta.BankID,
		VectorWidth:  meta.VectorWidth,
		MaxEntries:   meta.MaxEntries,
		NextEntrySeq: meta.NextEntrySeq,
		Name:         meta.Name,
	}}

	off := metaLen
	for i := uint32(0); i < h.EntryCount && off < entriesEnd; i++ {
		entry, consumed, derr := decodeEntry(payload[off:entriesEnd])
		if consumed == 0 {
			return nil, fmt.Errorf("bankfile: %s: entry %d: %w", path, i, derr)
		}
		off += consumed
		if derr != nil {
			if logger != nil {
				logger.Printf("bankfile: %s: entry %d rejected: %v", path, i, derr)
			}
			result.Skipped++
			continue
		}
		result.Entries = append(result.Entries, entry)
	}

	if h.VectorIndexOffset != 0 {
		blobStart := int(h.VectorIndexOffset) - headerSize
		if blobStart < 0 || blobStart > len(payload) {
			return nil, fmt.Errorf("bankfile: %s: vector index offset out of range: %w", path, bankerr.ErrCorruption)
		}
		centroids, err := decodeIVFBlob(payload[blobStart:], h.Flags&FlagVectorIndexZstd != 0)
		if err != nil {
			return nil, fmt.Errorf("bankfile: %s: %w", path, err)
		}
		result.Centroids = centroids
	}

	return result, nil
}
