package fulfiller

import "fmt"

// registerIndex is the single output register every KindWriteRegister
// op writes its result into. The ABI exposes one result register per
// call; a caller wanting the next op's result reads it before issuing
// that call.
const registerIndex = 0

// OutcomeKind tags which of the three shapes an Outcome carries.
type OutcomeKind uint8

const (
	// KindOk signals a mutation succeeded with no register-bearing
	// result (touch, delete, link, promote, demote, compact).
	KindOk OutcomeKind = iota
	// KindWriteRegister carries the flat register payload an op
	// produced (query, write, load, traverse, count, evict).
	KindWriteRegister
	// KindError carries a caller-facing failure message.
	KindError
)

// Outcome is the single return shape of every fulfiller operation.
// Exactly one of the three kinds applies; the other fields are zero.
type Outcome struct {
	Kind OutcomeKind

	RegisterIndex int
	Data          []int32
	Shape         []int

	Err string
}

func ok() Outcome {
	return Outcome{Kind: KindOk}
}

func errf(format string, args ...interface{}) Outcome {
	return Outcome{Kind: KindError, Err: fmt.Sprintf(format, args...)}
}

func writeRegister(registerIndex int, data []int32, shape []int) Outcome {
	return Outcome{Kind: KindWriteRegister, RegisterIndex: registerIndex, Data: data, Shape: shape}
}
