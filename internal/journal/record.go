// Package journal implements the append-only mutation log: one record
// per successful bank mutation, replayed onto a loaded snapshot on
// restart. Single writer per directory.
package journal

import (
	"encoding/binary"
	"fmt"

	"github.com/neuromem/bankcore/internal/types"
)

// Kind tags the mutation a record represents. Values are fixed at
// 0..=7 per the external journal file format.
type Kind uint8

const (
	KindInsert         Kind = 0
	KindRemove         Kind = 1
	KindTouch          Kind = 2
	KindAddEdge        Kind = 3
	KindSetTemperature Kind = 4
	KindPromote        Kind = 5
	KindDemote         Kind = 6
	KindBatchEvict     Kind = 7
)

// Record is one entry in the journal: kind, bank, entry, a
// kind-specific payload, and (on the wire) a trailing CRC32 over the
// whole record.
type Record struct {
	Kind    Kind
	BankID  types.BankId
	EntryID types.EntryId
	Payload []byte
}

// --- payload encode/decode, one pair per Kind ---

// EncodeInsert encodes an Insert record's payload.
func EncodeInsert(vector []types.Signal, temperature types.Temperature, tick uint64, confidence uint8) []byte {
	buf := make([]byte, 0, 2+len(vector)*2+1+8+1)
	buf = appendU16(buf, uint16(len(vector)))
	for _, s := range vector {
		buf = append(buf, byte(s.Polarity), s.Magnitude)
	}
	buf = append(buf, byte(temperature))
	buf = appendU64(buf, tick)
	buf = append(buf, confidence)
	return buf
}

// DecodeInsert decodes an Insert record's payload.
func DecodeInsert(payload []byte) (vector []types.Signal, temperature types.Temperature, tick uint64, confidence uint8, err error) {
	if len(payload) < 2 {
		return nil, 0, 0, 0, fmt.Errorf("journal: insert payload too short")
	}
	n := int(binary.LittleEndian.Uint16(payload[0:2]))
	off := 2
	if len(payload) < off+n*2+1+8+1 {
		return nil, 0, 0, 0, fmt.Errorf("journal: insert payload truncated")
	}
	vector = make([]types.Signal, n)
	for i := 0; i < n; i++ {
		vector[i] = types.Signal{Polarity: int8(payload[off]), Magnitude: payload[off+1]}
		off += 2
	}
	temperature = types.Temperature(payload[off])
	off++
	tick = binary.LittleEndian.Uint64(payload[off:])
	off += 8
	confidence = payload[off]
	return vector, temperature, tick, confidence, nil
}

// EncodeTouch encodes a Touch record's payload.
func EncodeTouch(tick uint64) []byte {
	return appendU64(nil, tick)
}

// DecodeTouch decodes a Touch record's payload.
func DecodeTouch(payload []byte) (tick uint64, err error) {
	if len(payload) < 8 {
		return 0, fmt.Errorf("journal: touch payload too short")
	}
	return binary.LittleEndian.Uint64(payload), nil
}

// EncodeAddEdge encodes an AddEdge record's payload.
func EncodeAddEdge(edge types.Edge) []byte {
	buf := make([]byte, 0, 1+8+8+1+8)
	buf = append(buf, byte(edge.Kind))
	buf = appendU64(buf, uint64(edge.Target.Bank))
	buf = appendU64(buf, uint64(edge.Target.Entry))
	buf = append(buf, edge.Weight)
	buf = appendU64(buf, edge.CreatedTick)
	return buf
}

// DecodeAddEdge decodes an AddEdge record's payload.
func DecodeAddEdge(payload []byte) (edge types.Edge, err error) {
	if len(payload) < 1+8+8+1+8 {
		return edge, fmt.Errorf("journal: add_edge payload too short")
	}
	off := 0
	edge.Kind = types.EdgeKind(payload[off])
	off++
	edge.Target.Bank = types.BankId(binary.LittleEndian.Uint64(payload[off:]))
	off += 8
	edge.Target.Entry = types.EntryId(binary.LittleEndian.Uint64(payload[off:]))
	off += 8
	edge.Weight = payload[off]
	off++
	edge.CreatedTick = binary.LittleEndian.Uint64(payload[off:])
	return edge, nil
}

// EncodeSetTemperature encodes a SetTemperature record's payload.
func EncodeSetTemperature(t types.Temperature) []byte {
	return []byte{byte(t)}
}

// DecodeSetTemperature decodes a SetTemperature record's payload.
func DecodeSetTemperature(payload []byte) (types.Temperature, error) {
	if len(payload) < 1 {
		return 0, fmt.Errorf("journal: set_temperature payload too short")
	}
	return types.Temperature(payload[0]), nil
}

// EncodeBatchEvict encodes a BatchEvict record's payload.
func EncodeBatchEvict(ids []types.EntryId) []byte {
	buf := appendU32(nil, uint32(len(ids)))
	for _, id := range ids {
		buf = appendU64(buf, uint64(id))
	}
	return buf
}

// DecodeBatchEvict decodes a BatchEvict record's payload.
func DecodeBatchEvict(payload []byte) ([]types.EntryId, error) {
	if len(payload) < 4 {
		return nil, fmt.Errorf("journal: batch_evict payload too short")
	}
	count := binary.LittleEndian.Uint32(payload[0:4])
	off := 4
	if len(payload) < off+int(count)*8 {
		return nil, fmt.Errorf("journal: batch_evict payload truncated")
	}
	ids := make([]types.EntryId, count)
	for i := range ids {
		ids[i] = types.EntryId(binary.LittleEndian.Uint64(payload[off:]))
		off += 8
	}
	return ids, nil
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
