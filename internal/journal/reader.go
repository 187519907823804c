package journal

import (
	"encoding/binary"
	"hash/crc32"
	"io"
	"os"

	"github.com/neuromem/bankcore/internal/types"
)

// ReadAll scans every record from the start of the journal file at
// path, verifying each CRC, and stops at the first invalid record —
// the log is treated as a clean prefix, tolerating a truncated
// trailing record left by a crash mid-append. Returns the records that
// validated, in append order. A missing file yields no records.
func ReadAll(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	return Parse(data), nil
}

// Parse decodes records from an in-memory buffer, stopping at the
// first record that does not fully fit or fails its CRC.
func Parse(data []byte) []Record {
	var records []Record
	off := 0
	const headerLen = 1 + 8 + 8 + 4
	for {
		if off+headerLen > len(data) {
			break
		}
		kind := Kind(data[off])
		bankID := types.BankId(binary.LittleEndian.Uint64(data[off+1:]))
		entryID := types.EntryId(binary.LittleEndian.Uint64(data[off+9:]))
		payloadLen := binary.LittleEndian.Uint32(data[off+17:])

		recordLen := headerLen + int(payloadLen) + 4
		if off+recordLen > len(data) {
			break
		}

		payload := data[off+headerLen : off+headerLen+int(payloadLen)]
		wantCRC := binary.LittleEndian.Uint32(data[off+headerLen+int(payloadLen):])

		sum := crc32.NewIEEE()
		_, _ = sum.Write(data[off : off+headerLen+int(payloadLen)])
		if sum.Sum32() != wantCRC {
			break
		}

		records = append(records, Record{
			Kind:    kind,
			BankID:  bankID,
			EntryID: entryID,
			Payload: payload,
		})
		off += recordLen
	}
	return records
}
