package ledger

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func emptyDoc() Document {
	return Document{ID: "ref-1", Code: "FRIEND25", Active: true}
}

func TestPatch_RejectsUnknownList(t *testing.T) {
	p := NewPatch("ref-1").Append(List("vipUsers"), "u1")
	require.Error(t, p.Err())
	assert.Empty(t, p.Ops())
}

func TestPatch_KeyFailureIsSticky(t *testing.T) {
	prev := newKey
	newKey = func() (string, error) { return "", errors.New("entropy exhausted") }
	t.Cleanup(func() { newKey = prev })

	p := NewPatch("ref-1").SetIfMissing(PendingUsers).Append(PendingUsers, "u1").Inc(PendingCount, 1)
	require.Error(t, p.Err())

	_, err := Apply(emptyDoc(), p)
	assert.ErrorContains(t, err, "entropy exhausted")
}

func TestApply_AppendAndIncrement(t *testing.T) {
	doc := emptyDoc()
	p := NewPatch(doc.ID).SetIfMissing(PendingUsers).Append(PendingUsers, "u1").Inc(PendingCount, 1)

	next, err := Apply(doc, p)
	require.NoError(t, err)

	assert.Equal(t, 1, next.Count(PendingCount))
	require.Len(t, next.Refs(PendingUsers), 1)
	assert.Equal(t, "u1", next.Refs(PendingUsers)[0].Ref)
	assert.Len(t, next.Refs(PendingUsers)[0].Key, 12)
	assert.NoError(t, next.Consistent())

	// original untouched
	assert.Empty(t, doc.Lists)
	assert.Zero(t, doc.Count(PendingCount))
}

func TestApply_MoveIsAtomic(t *testing.T) {
	doc := emptyDoc()
	doc, err := Apply(doc, NewPatch(doc.ID).SetIfMissing(PendingUsers).Append(PendingUsers, "u1").Inc(PendingCount, 1))
	require.NoError(t, err)

	move := NewPatch(doc.ID).
		Unset(PendingUsers, "u1").Dec(PendingCount, 1).
		SetIfMissing(PaidUsers).Append(PaidUsers, "u1").Inc(PaidCount, 1)

	next, err := Apply(doc, move)
	require.NoError(t, err)
	assert.Equal(t, 0, next.Count(PendingCount))
	assert.Equal(t, 1, next.Count(PaidCount))
	assert.False(t, next.Contains(PendingUsers, "u1"))
	assert.True(t, next.Contains(PaidUsers, "u1"))
	assert.NoError(t, next.Consistent())
}

func TestApply_FailuresLeaveDocumentUnchanged(t *testing.T) {
	base := emptyDoc()
	base, err := Apply(base, NewPatch(base.ID).SetIfMissing(PendingUsers).Append(PendingUsers, "u1").Inc(PendingCount, 1))
	require.NoError(t, err)

	tests := []struct {
		name  string
		patch *Patch
		want  error
	}{
		{"duplicate across lists", NewPatch(base.ID).Append(PaidUsers, "u1").Inc(PaidCount, 1), ErrDuplicateReference},
		{"negative counter", NewPatch(base.ID).Dec(PaidCount, 1), ErrNegativeCounter},
		{"unset unknown", NewPatch(base.ID).Unset(PendingUsers, "ghost").Dec(PendingCount, 1), ErrMissingReference},
		{"other document", NewPatch("ref-2").Inc(PendingCount, 1), ErrDocumentMismatch},
		{"empty", NewPatch(base.ID), ErrEmptyPatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Apply(base, tt.patch)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, base, got)
			assert.NoError(t, got.Consistent())
		})
	}
}

func TestDocument_Drifts(t *testing.T) {
	doc := Document{
		Code:     "DRIFT",
		Lists:    map[List][]Reference{PendingUsers: {{Key: "k1", Ref: "u1"}}},
		Counters: map[Counter]int{PendingCount: 2, PaidCount: 0},
	}
	drifts := doc.Drifts()
	require.Len(t, drifts, 1)
	assert.Equal(t, Drift{Code: "DRIFT", List: PendingUsers, Counter: 2, Members: 1}, drifts[0])
	assert.ErrorIs(t, doc.Consistent(), ErrInconsistent)
}

func TestDocument_DualMembershipIsInconsistent(t *testing.T) {
	doc := Document{
		Code: "BOTH",
		Lists: map[List][]Reference{
			PendingUsers: {{Key: "k1", Ref: "u1"}},
			PaidUsers:    {{Key: "k2", Ref: "u1"}},
		},
		Counters: map[Counter]int{PendingCount: 1, PaidCount: 1},
	}
	assert.ErrorIs(t, doc.Consistent(), ErrInconsistent)
}

func TestApply_ManySequentialAppendsStayConsistent(t *testing.T) {
	doc := emptyDoc()
	for i := 0; i < 25; i++ {
		var err error
		doc, err = Apply(doc, NewPatch(doc.ID).SetIfMissing(PendingUsers).Append(PendingUsers, fmt.Sprintf("u%d", i)).Inc(PendingCount, 1))
		require.NoError(t, err)
	}
	for i := 0; i < 10; i++ {
		id := fmt.Sprintf("u%d", i)
		var err error
		doc, err = Apply(doc, NewPatch(doc.ID).Unset(PendingUsers, id).Dec(PendingCount, 1).SetIfMissing(PaidUsers).Append(PaidUsers, id).Inc(PaidCount, 1))
		require.NoError(t, err)
	}
	assert.Equal(t, 15, doc.Count(PendingCount))
	assert.Equal(t, 10, doc.Count(PaidCount))
	assert.Equal(t, 25, doc.Count(PendingCount)+doc.Count(PaidCount))
	assert.NoError(t, doc.Consistent())
}
