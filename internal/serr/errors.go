// Package serr defines the error taxonomy surfaced across the substrate:
// capacity, contract, resource, timeout and cancel kinds (see spec §7).
// Every exported sentinel here is a *Error carrying only a discriminant
// and, for capacity errors, an optional size — callers match on Kind via
// errors.As, never on string content.
//
// © 2025 shm-substrate authors. MIT License.
package serr

import "fmt"

// Kind discriminates the five failure taxonomies the host must tell apart.
type Kind int

const (
	// KindCapacity means a fixed-size table or the heap is full. Fatal to
	// the current operation; the table/heap does not grow.
	KindCapacity Kind = iota + 1
	// KindContract means the caller violated a phase gate or master-only
	// restriction. Fatal to the current operation.
	KindContract
	// KindResource means the OS/backing object could not satisfy a
	// request (mapping, disk space, serialization).
	KindResource
	// KindTimeout means a writer appears to have crashed mid-publish.
	// Fatal to the process, per spec §7.
	KindTimeout
	// KindCancel is cooperative cancellation (workers_should_exit); the
	// host must not log this as a crash.
	KindCancel
)

func (k Kind) String() string {
	switch k {
	case KindCapacity:
		return "capacity"
	case KindContract:
		return "contract"
	case KindResource:
		return "resource"
	case KindTimeout:
		return "timeout"
	case KindCancel:
		return "cancel"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by every substrate operation.
// It intentionally carries no stack trace or wrapped cause: per spec §7
// these are single-shot errors with a discriminant, not diagnostics.
type Error struct {
	Kind Kind
	Op   string // operation name, e.g. "AddEdge", "Put", "Attach"
	Msg  string
	Size int64 // set for some KindCapacity errors (requested/available bytes)
}

func (e *Error) Error() string {
	if e.Size != 0 {
		return fmt.Sprintf("%s: %s (%s, size=%d)", e.Op, e.Msg, e.Kind, e.Size)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Op, e.Msg, e.Kind)
}

// Is supports errors.Is against the exported sentinels below by comparing
// Kind and Op — two *Error values with the same Op and Kind are considered
// equivalent regardless of Size, so a caller can test for e.g. HeapFull
// without caring about the exact overflow amount.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Op == t.Op
}

// New constructs an *Error for call sites that need a custom message beyond
// the pre-declared sentinels (e.g. attach/init failures naming a path).
func New(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

// WithSize returns a copy of a sentinel error with Size populated, for the
// capacity errors that report how much was requested/available.
func (e *Error) WithSize(n int64) *Error {
	cp := *e
	cp.Size = n
	return &cp
}

// Pre-declared sentinels named directly after spec §6's error kinds.
var (
	ErrFailedAnonymousInit = &Error{Kind: KindResource, Op: "Init", Msg: "no anonymous-memory mechanism available and no backing directory supplied"}
	ErrLessThanMinimum     = &Error{Kind: KindResource, Op: "Init", Msg: "less than minimum available bytes in backing directory"}
	ErrOutOfSharedMemory   = &Error{Kind: KindResource, Op: "commit", Msg: "failed to commit pages"}
	ErrHeapFull            = &Error{Kind: KindCapacity, Op: "alloc", Msg: "heap full"}
	ErrHashTableFull       = &Error{Kind: KindCapacity, Op: "Put", Msg: "value hashtable full"}
	ErrDepTableFull        = &Error{Kind: KindCapacity, Op: "AddEdge", Msg: "dependency table full"}
	ErrWorkerShouldExit    = &Error{Kind: KindCancel, Op: "", Msg: "workers_should_exit is set"}
	ErrStuckWriter         = &Error{Kind: KindTimeout, Op: "Has", Msg: "writer did not publish within the stuck-writer threshold"}

	ErrMasterOnly      = &Error{Kind: KindContract, Op: "", Msg: "operation is restricted to the master process"}
	ErrDepReadsBlocked = &Error{Kind: KindContract, Op: "GetEdges", Msg: "allow_dep_reads is not set"}
	ErrRemovesBlocked  = &Error{Kind: KindContract, Op: "Remove", Msg: "allow_removes is not set"}
	ErrBadVertex       = &Error{Kind: KindContract, Op: "AddEdge", Msg: "vertex must fit in 31 bits"}
	ErrBadTag          = &Error{Kind: KindContract, Op: "", Msg: "corrupt slot: invalid tag bits"}
	ErrKeyTooShort     = &Error{Kind: KindContract, Op: "Put", Msg: "key must be at least 8 bytes"}
	ErrPayloadTooLarge = &Error{Kind: KindResource, Op: "Put", Msg: "payload does not fit in 31 bits"}
	ErrNotPresent      = &Error{Kind: KindContract, Op: "Get", Msg: "key not present"}
	ErrDstPresent      = &Error{Kind: KindContract, Op: "Move", Msg: "destination key already present"}
	ErrSrcAbsent       = &Error{Kind: KindContract, Op: "Move", Msg: "source key not present"}
	ErrSerialization   = &Error{Kind: KindResource, Op: "Put", Msg: "serializer failed to encode value"}
)

// WithOp returns a copy of a sentinel with Op set, for sentinels declared
// with a blank Op above so call sites can stamp the concrete operation.
func (e *Error) WithOp(op string) *Error {
	cp := *e
	cp.Op = op
	return &cp
}
