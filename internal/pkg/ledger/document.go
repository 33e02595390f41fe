package ledger

import (
	"errors"
	"fmt"
)

var ErrInconsistent = errors.New("ledger: document is inconsistent")

// Document is the in-memory view of a referral code and its reference lists.
type Document struct {
	ID          string
	Code        string
	Description string
	Active      bool
	Lists       map[List][]Reference
	Counters    map[Counter]int
}

// Drift describes a counter that does not match its list.
type Drift struct {
	Code    string `json:"code"`
	List    List   `json:"list"`
	Counter int    `json:"counter"`
	Members int    `json:"members"`
}

func (d Document) Refs(list List) []Reference {
	return d.Lists[list]
}

func (d Document) Count(counter Counter) int {
	return d.Counters[counter]
}

// Contains reports whether userID is referenced from list.
func (d Document) Contains(list List, userID string) bool {
	for _, r := range d.Lists[list] {
		if r.Ref == userID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so patches can be applied without touching d.
func (d Document) Clone() Document {
	out := d
	out.Lists = make(map[List][]Reference, len(d.Lists))
	for k, v := range d.Lists {
		refs := make([]Reference, len(v))
		copy(refs, v)
		out.Lists[k] = refs
	}
	out.Counters = make(map[Counter]int, len(d.Counters))
	for k, v := range d.Counters {
		out.Counters[k] = v
	}
	return out
}

// Drifts lists every counter that disagrees with its list length.
func (d Document) Drifts() []Drift {
	var drifts []Drift
	for _, list := range []List{PendingUsers, PaidUsers} {
		count, members := d.Count(list.Counter()), len(d.Lists[list])
		if count != members {
			drifts = append(drifts, Drift{Code: d.Code, List: list, Counter: count, Members: members})
		}
	}
	return drifts
}

// Consistent checks counters against lists and that no user is in both lists.
func (d Document) Consistent() error {
	if drifts := d.Drifts(); len(drifts) > 0 {
		return fmt.Errorf("%w: %s has %s=%d but %d references", ErrInconsistent,
			d.Code, drifts[0].List.Counter(), drifts[0].Counter, drifts[0].Members)
	}
	for _, r := range d.Lists[PendingUsers] {
		if d.Contains(PaidUsers, r.Ref) {
			return fmt.Errorf("%w: %s references user %s as pending and paid", ErrInconsistent, d.Code, r.Ref)
		}
	}
	return nil
}

// Apply executes patch against a copy of doc. Either every operation
// succeeds and the new document is returned, or doc is left as it was.
func Apply(doc Document, patch *Patch) (Document, error) {
	if err := patch.Err(); err != nil {
		return doc, err
	}
	if patch.ID() != doc.ID {
		return doc, ErrDocumentMismatch
	}
	if len(patch.ops) == 0 {
		return doc, ErrEmptyPatch
	}

	next := doc.Clone()
	for _, op := range patch.ops {
		switch op.Kind {
		case OpSetIfMissing:
			if _, ok := next.Lists[op.List]; !ok {
				next.Lists[op.List] = []Reference{}
			}
			if _, ok := next.Counters[op.Counter]; !ok {
				next.Counters[op.Counter] = 0
			}
		case OpAppend:
			if next.Contains(PendingUsers, op.Ref.Ref) || next.Contains(PaidUsers, op.Ref.Ref) {
				return doc, ErrDuplicateReference
			}
			next.Lists[op.List] = append(next.Lists[op.List], op.Ref)
		case OpUnset:
			refs := next.Lists[op.List]
			kept := refs[:0:0]
			for _, r := range refs {
				if r.Ref != op.Ref.Ref {
					kept = append(kept, r)
				}
			}
			if len(kept) == len(refs) {
				return doc, ErrMissingReference
			}
			next.Lists[op.List] = kept
		case OpInc:
			next.Counters[op.Counter] += op.N
		case OpDec:
			if next.Counters[op.Counter] < op.N {
				return doc, ErrNegativeCounter
			}
			next.Counters[op.Counter] -= op.N
		default:
			return doc, fmt.Errorf("ledger: unknown operation %q", op.Kind)
		}
	}
	return next, nil
}
