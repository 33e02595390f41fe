package ledger

import (
	"errors"
	"fmt"

	"github.com/ManuelReschke/MemberGate/internal/pkg/keygen"
)

// List names a reference list on a referral code document.
type List string

// Counter names a denormalized count on a referral code document.
type Counter string

const (
	PendingUsers List = "pendingUsers"
	PaidUsers    List = "paidUsers"

	PendingCount Counter = "pendingCount"
	PaidCount    Counter = "paidCount"
)

// Counter returns the count that mirrors the list length.
func (l List) Counter() Counter {
	if l == PaidUsers {
		return PaidCount
	}
	return PendingCount
}

// Valid reports whether l is one of the known lists.
func (l List) Valid() bool {
	return l == PendingUsers || l == PaidUsers
}

// Reference is a keyed pointer from a referral code to a user.
type Reference struct {
	Key string `json:"_key"`
	Ref string `json:"_ref"`
}

type OpKind string

const (
	OpSetIfMissing OpKind = "setIfMissing"
	OpAppend       OpKind = "append"
	OpUnset        OpKind = "unset"
	OpInc          OpKind = "inc"
	OpDec          OpKind = "dec"
)

// Op is a single relative mutation inside a patch.
type Op struct {
	Kind    OpKind
	List    List
	Counter Counter
	Ref     Reference
	N       int
}

var (
	ErrDuplicateReference = errors.New("ledger: reference already present on document")
	ErrMissingReference   = errors.New("ledger: reference not present on document")
	ErrNegativeCounter    = errors.New("ledger: counter would drop below zero")
	ErrDocumentMismatch   = errors.New("ledger: patch targets another document")
	ErrEmptyPatch         = errors.New("ledger: patch has no operations")
)

// newKey is swapped in tests that need deterministic keys.
var newKey = keygen.ArrayKey

// Patch collects relative mutations for one document. All operations are
// committed together or not at all.
type Patch struct {
	id  string
	ops []Op
	err error
}

func NewPatch(documentID string) *Patch {
	return &Patch{id: documentID}
}

func (p *Patch) ID() string {
	return p.id
}

// Ops returns the operations in the order they were added.
func (p *Patch) Ops() []Op {
	out := make([]Op, len(p.ops))
	copy(out, p.ops)
	return out
}

// Err reports the first builder error (invalid list, key generation failure).
func (p *Patch) Err() error {
	return p.err
}

// SetIfMissing initialises the list and its counter when absent.
func (p *Patch) SetIfMissing(list List) *Patch {
	if !p.checkList(list) {
		return p
	}
	p.ops = append(p.ops, Op{Kind: OpSetIfMissing, List: list, Counter: list.Counter()})
	return p
}

// Append adds a reference to userID with a freshly generated key.
func (p *Patch) Append(list List, userID string) *Patch {
	if !p.checkList(list) {
		return p
	}
	if userID == "" {
		p.fail(errors.New("ledger: append requires a user reference"))
		return p
	}
	key, err := newKey()
	if err != nil {
		p.fail(fmt.Errorf("ledger: generate array key: %w", err))
		return p
	}
	p.ops = append(p.ops, Op{Kind: OpAppend, List: list, Ref: Reference{Key: key, Ref: userID}})
	return p
}

// Unset removes the reference to userID from list.
func (p *Patch) Unset(list List, userID string) *Patch {
	if !p.checkList(list) {
		return p
	}
	p.ops = append(p.ops, Op{Kind: OpUnset, List: list, Ref: Reference{Ref: userID}})
	return p
}

func (p *Patch) Inc(counter Counter, n int) *Patch {
	p.ops = append(p.ops, Op{Kind: OpInc, Counter: counter, N: n})
	return p
}

func (p *Patch) Dec(counter Counter, n int) *Patch {
	p.ops = append(p.ops, Op{Kind: OpDec, Counter: counter, N: n})
	return p
}

func (p *Patch) checkList(list List) bool {
	if !list.Valid() {
		p.fail(fmt.Errorf("ledger: unknown list %q", list))
		return false
	}
	return true
}

func (p *Patch) fail(err error) {
	if p.err == nil {
		p.err = err
	}
}
