package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessReference_WireShape(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("owned omits acceptance", func(t *testing.T) {
		data, err := json.Marshal(OwnedReference("L1"))
		require.NoError(t, err)
		assert.JSONEq(t, `{"id":"L1","t":"owned"}`, string(data))
	})

	t.Run("pending shared writes null acceptance", func(t *testing.T) {
		data, err := json.Marshal(SharedReference("L1", "A", "Alice", at))
		require.NoError(t, err)
		assert.JSONEq(t, `{"id":"L1","t":"shared","a":null,"ps":"read","sa":"2026-03-01T12:00:00Z","sb":"A","sbn":"Alice"}`, string(data))
	})
}

func TestAccessReference_DecodeAcceptance(t *testing.T) {
	tests := []struct {
		raw  string
		want Acceptance
	}{
		{`{"id":"L1","t":"shared","a":null}`, AcceptancePending},
		{`{"id":"L1","t":"shared"}`, AcceptancePending},
		{`{"id":"L1","t":"shared","a":true}`, AcceptanceActive},
		{`{"id":"L1","t":"shared","a":false}`, AcceptanceDeclined},
	}

	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			var ref AccessReference
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &ref))

			got, ok := ref.Acceptance()
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, ScopeRead, ref.Grant.Scope)
		})
	}
}

func TestAccessReference_OwnedIgnoresAcceptanceKey(t *testing.T) {
	var ref AccessReference
	require.NoError(t, json.Unmarshal([]byte(`{"id":"L1","t":"owned","a":true}`), &ref))

	assert.True(t, ref.IsOwned())
	assert.Nil(t, ref.Grant)
	_, ok := ref.Acceptance()
	assert.False(t, ok)
}

func TestAccessReference_RejectsUnknownType(t *testing.T) {
	var ref AccessReference
	err := json.Unmarshal([]byte(`{"id":"L1","t":"borrowed"}`), &ref)
	assert.Error(t, err)
}

func TestAccessReference_Validate(t *testing.T) {
	owned := OwnedReference("L1")
	owned.Grant = &ShareGrant{}
	assert.Error(t, owned.Validate())

	shared := AccessReference{ID: "L1", Type: AccessShared}
	assert.Error(t, shared.Validate())

	_, err := json.Marshal(shared)
	assert.Error(t, err)
}

func TestAccessLists_AddRemove(t *testing.T) {
	var d AccessLists

	assert.True(t, d.Add(KindLabel, OwnedReference("L1")))
	assert.False(t, d.Add(KindLabel, SharedReference("L1", "B", "Bob", time.Now())), "any existing form blocks a duplicate")
	assert.True(t, d.Add(KindNote, OwnedReference("L1")), "lists are independent")

	assert.True(t, d.Has(KindLabel, "L1"))
	assert.True(t, d.Remove(KindLabel, "L1"))
	assert.False(t, d.Remove(KindLabel, "L1"))
	assert.Empty(t, d.Labels)
	assert.Len(t, d.Notes, 1)
}

func TestUserAccess_RoundTripKeepsListKeys(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	u := NewUserAccess("U", "u@example.com", "", now)
	u.Data.Add(KindLabel, OwnedReference("L1"))
	u.Data.Add(KindNote, SharedReference("N1", "A", "Alice", now))

	data, err := json.Marshal(u)
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	var lists map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw["d"], &lists))
	assert.Contains(t, lists, "l")
	assert.Contains(t, lists, "n")
	assert.Contains(t, lists, "m")

	var back UserAccess
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, "u@example.com", back.Name())
	assert.Equal(t, now.AddDate(1, 0, 0), back.Plan.ExpiresAt)
	ref, ok := back.Data.Find(KindNote, "N1")
	require.True(t, ok)
	assert.Equal(t, "Alice", ref.Grant.SharedByDisplayName)
}

func TestPartition(t *testing.T) {
	owned, shared := Partition([]AccessReference{
		OwnedReference("L1"),
		SharedReference("L2", "A", "Alice", time.Now()),
		OwnedReference("L3"),
	})

	assert.Equal(t, []string{"L1", "L3"}, owned)
	require.Len(t, shared, 1)
	assert.Equal(t, "L2", shared[0].ID)
}

func TestLabel_MembersAccess(t *testing.T) {
	l := &Label{ID: "L1", MemberProfileIDs: []string{"P1"}}

	assert.True(t, l.AddMember("P2"))
	assert.False(t, l.AddMember("P2"))
	assert.True(t, l.RemoveMember("P1"))
	assert.False(t, l.RemoveMember("P1"))
	assert.Equal(t, []string{"P2"}, l.MemberProfileIDs)

	c := l.Clone()
	c.MemberProfileIDs[0] = "changed"
	assert.Equal(t, "P2", l.MemberProfileIDs[0])
}

func TestShareGrant_JSONRoundTrip(t *testing.T) {
	for _, a := range []Acceptance{AcceptancePending, AcceptanceActive, AcceptanceDeclined} {
		t.Run(a.String(), func(t *testing.T) {
			in := ShareGrant{
				SharedAt:            time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
				Scope:               ScopeRead,
				SharedByUserID:      "A",
				SharedByDisplayName: "Alice",
				Acceptance:          a,
			}
			data, err := json.Marshal(in)
			require.NoError(t, err)
			assert.Contains(t, string(data), `"acceptance":"`+a.String()+`"`)

			var out ShareGrant
			require.NoError(t, json.Unmarshal(data, &out))
			assert.Equal(t, in, out)
		})
	}
}

func TestAcceptance_UnmarshalTextRejectsUnknown(t *testing.T) {
	var a Acceptance
	assert.Error(t, a.UnmarshalText([]byte("maybe")))
}
