package bankfile

import (
	"encoding/binary"
	"fmt"

	"github.com/neuromem/bankcore/internal/bankerr"
	"github.com/neuromem/bankcore/internal/entrymodel"
	"github.com/neuromem/bankcore/internal/types"
)

const edgeRecordSize = 1 + 8 + 8 + 1 + 8 // kind, target_bank, target_entry, weight, created_tick

// encodeEntry serializes one BankEntry per §4.4's per-entry layout,
// with a trailing CRC32 over the whole record.
func encodeEntry(e *entrymodel.BankEntry) []byte {
	debugTag := []byte(e.DebugTag)

	buf := make([]byte, 0, 8+2+len(e.Vector)*2+2+len(e.Edges)*edgeRecordSize+1+1+8+8+4+8+2+len(debugTag))
	buf = appendU64(buf, uint64(e.ID))
	buf = appendU16(buf, uint16(len(e.Vector)))
	for _, s := range e.Vector {
		buf = append(buf, byte(s.Polarity), s.Magnitude)
	}
	buf = appendU16(buf, uint16(len(e.Edges)))
	for _, edge := range e.Edges {
		buf = append(buf, byte(edge.Kind))
		buf = appendU64(buf, uint64(edge.Target.Bank))
		buf = appendU64(buf, uint64(edge.Target.Entry))
		buf = append(buf, edge.Weight)
		buf = appendU64(buf, edge.CreatedTick)
	}
	buf = append(buf, byte(e.Temperature), e.Confidence)
	buf = appendU64(buf, e.CreatedTick)
	buf = appendU64(buf, e.LastAccessedTick)
	buf = appendU32(buf, e.AccessCount)
	buf = appendU64(buf, uint64(e.Origin))
	buf = appendU16(buf, uint16(len(debugTag)))
	buf = append(buf, debugTag...)

	crc := crc32Of(buf)
	buf = appendU32(buf, crc)
	return buf
}

// decodeEntry parses one per-entry record starting at data[0],
// verifying its trailing CRC32. Returns the entry, the number of bytes
// consumed, and an error if the record is truncated or its checksum
// fails (checksum failure is not fatal to the caller — the caller
// skips the entry and keeps loading).
func decodeEntry(data []byte) (*entrymodel.BankEntry, int, error) {
	const fixedMin = 8 + 2 + 2 + 1 + 1 + 8 + 8 + 4 + 8 + 2 + 4
	if len(data) < fixedMin {
		return nil, 0, fmt.Errorf("bankfile: entry record truncated")
	}

	off := 0
	id := types.EntryId(binary.LittleEndian.Uint64(data[off:]))
	off += 8

	vecLen := int(binary.LittleEndian.Uint16(data[off:]))
	off += 2
	if len(data) < off+vecLen*2 {
		return nil, 0, fmt.Errorf("bankfile: entry vector truncated")
	}
	vector := make([]types.Signal, vecLen)
	for i := 0; i < vecLen; i++ {
		vector[i] = types.Signal{Polarity: int8(data[off]), Magnitude: data[off+1]}
		off += 2
	}

	if len(data) < off+2 {
		return nil, 0, fmt.Errorf("bankfile: entry edge count truncated")
	}
	edgeCount := int(binary.LittleEndian.Uint16(data[off:]))
	off += 2
	if len(data) < off+edgeCount*edgeRecordSize {
		return nil, 0, fmt.Errorf("bankfile: entry edges truncated")
	}
	edges := make([]types.Edge, edgeCount)
	for i := 0; i < edgeCount; i++ {
		var edge types.Edge
		edge.Kind = types.EdgeKind(data[off])
		off++
		edge.Target.Bank = types.BankId(binary.LittleEndian.Uint64(data[off:]))
		off += 8
		edge.Target.Entry = types.EntryId(binary.LittleEndian.Uint64(data[off:]))
		off += 8
		edge.Weight = data[off]
		off++
		edge.CreatedTick = binary.LittleEndian.Uint64(data[off:])
		off += 8
		edges[i] = edge
	}

	if len(data) < off+1+1+8+8+4+8+2 {
		return nil, 0, fmt.Errorf("bankfile: entry tail truncated")
	}
	temperature := types.Temperature(data[off])
	off++
	confidence := data[off]
	off++
	createdTick := binary.LittleEndian.Uint64(data[off:])
	off += 8
	lastAccessedTick := binary.LittleEndian.Uint64(data[off:])
	off += 8
	accessCount := binary.LittleEndian.Uint32(data[off:])
	off += 4
	origin := types.BankId(binary.LittleEndian.Uint64(data[off:]))
	off += 8
	tagLen := int(binary.LittleEndian.Uint16(data[off:]))
	off += 2
	if len(data) < off+tagLen+4 {
		return nil, 0, fmt.Errorf("bankfile: entry debug tag truncated")
	}
	debugTag := string(data[off : off+tagLen])
	off += tagLen

	recordEnd := off + 4
	wantCRC := binary.LittleEndian.Uint32(data[off:])
	gotCRC := crc32Of(data[:off])

	entry := entrymodel.New(id, vector, origin, temperature, createdTick, confidence)
	entry.Edges = edges
	entry.LastAccessedTick = lastAccessedTick
	entry.AccessCount = accessCount
	entry.DebugTag = debugTag
	entry.RecomputeChecksum()

	if gotCRC != wantCRC {
		return nil, recordEnd, fmt.Errorf("bankfile: %w", bankerr.ErrEntryCorruption)
	}
	return entry, recordEnd, nil
}
