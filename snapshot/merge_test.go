package snapshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taoscan/neuronsnap/catalog"
)

const mergeBlock = "0x0101010101010101010101010101010101010101010101010101010101010101"

func memberKV[V any](m catalog.Descriptor, group, member uint16, v V) KV[V] {
	return KV[V]{Key: append(m.Prefix(), EncodeMemberSuffix(group, member)...), Value: v}
}

func groupKV[V any](m catalog.Descriptor, group uint16, v []V) KV[[]V] {
	return KV[[]V]{Key: append(m.Prefix(), EncodeGroupSuffix(group)...), Value: v}
}

func activeMap(kvs ...KV[[]bool]) ScalarMap {
	return NewScalarMap(catalog.Active.Name, kvs, func(n *Neuron, v bool) { n.Active = v })
}

func rankMap(kvs ...KV[[]uint16]) ScalarMap {
	return NewScalarMap(catalog.Rank.Name, kvs, func(n *Neuron, v uint16) { n.Rank = v })
}

func TestMerge_scenario(t *testing.T) {
	neurons, hotkeys, err := Merge(MergeInput{
		BlockHash: mergeBlock,
		Identities: []KV[string]{
			memberKV(catalog.Keys, 1, 0, "alice"),
			memberKV(catalog.Keys, 1, 1, "bob"),
		},
		Scalars: []ScalarMap{
			activeMap(groupKV(catalog.Active, 1, []bool{true, false})),
		},
		Weights: []KV[[]Weight]{
			memberKV(catalog.Weights, 1, 0, []Weight{{UID: 1, Weight: 100}}),
		},
		StrictMemberCount: true,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, hotkeys)
	require.Len(t, neurons, 2)

	n0 := neurons[NeuronKey{SubnetID: 1, NeuronID: 0}]
	require.NotNil(t, n0)
	assert.Equal(t, &Neuron{
		SubnetID:  1,
		NeuronID:  0,
		BlockHash: mergeBlock,
		Hotkey:    "alice",
		Active:    true,
		Weights:   []Weight{{UID: 1, Weight: 100}},
	}, n0)

	n1 := neurons[NeuronKey{SubnetID: 1, NeuronID: 1}]
	require.NotNil(t, n1)
	assert.Equal(t, "bob", n1.Hotkey)
	assert.False(t, n1.Active)
	assert.NotNil(t, n1.Weights)
	assert.Empty(t, n1.Weights)
}

func TestMerge_unknownMember(t *testing.T) {
	_, _, err := Merge(MergeInput{
		BlockHash: mergeBlock,
		Identities: []KV[string]{
			memberKV(catalog.Keys, 7, 0, "alice"),
			memberKV(catalog.Keys, 7, 1, "bob"),
		},
		Scalars: []ScalarMap{
			rankMap(groupKV(catalog.Rank, 7, []uint16{1, 2, 3})),
		},
		StrictMemberCount: true,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownMember)
	var um *UnknownMemberError
	require.ErrorAs(t, err, &um)
	assert.Equal(t, "rank", um.Map)
	assert.Equal(t, uint16(7), um.SubnetID)
	assert.Equal(t, 2, um.NeuronID)
}

func TestMerge_unknownSubnet(t *testing.T) {
	_, _, err := Merge(MergeInput{
		Identities: []KV[string]{memberKV(catalog.Keys, 1, 0, "alice")},
		Scalars: []ScalarMap{
			activeMap(groupKV(catalog.Active, 2, []bool{true})),
		},
	})
	var um *UnknownMemberError
	require.ErrorAs(t, err, &um)
	assert.Equal(t, uint16(2), um.SubnetID)
	assert.Equal(t, 0, um.NeuronID)
}

func TestMerge_weightsUnknownMember(t *testing.T) {
	_, _, err := Merge(MergeInput{
		Identities: []KV[string]{memberKV(catalog.Keys, 1, 0, "alice")},
		Weights: []KV[[]Weight]{
			memberKV(catalog.Weights, 1, 0, []Weight{}),
			memberKV(catalog.Weights, 1, 5, []Weight{{UID: 0, Weight: 1}}),
		},
	})
	assert.ErrorIs(t, err, ErrUnknownMember)
	var um *UnknownMemberError
	require.ErrorAs(t, err, &um)
	assert.Equal(t, "weights", um.Map)
	assert.Equal(t, 5, um.NeuronID)
}

func TestMerge_weightTargetsNotValidated(t *testing.T) {
	neurons, _, err := Merge(MergeInput{
		Identities: []KV[string]{memberKV(catalog.Keys, 1, 0, "alice")},
		Weights: []KV[[]Weight]{
			memberKV(catalog.Weights, 1, 0, []Weight{{UID: 999, Weight: 1}, {UID: 3, Weight: 2}}),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []Weight{{UID: 999, Weight: 1}, {UID: 3, Weight: 2}},
		neurons[NeuronKey{1, 0}].Weights)
}

func TestMerge_memberCount(t *testing.T) {
	in := MergeInput{
		Identities: []KV[string]{
			memberKV(catalog.Keys, 3, 0, "alice"),
			memberKV(catalog.Keys, 3, 1, "bob"),
			memberKV(catalog.Keys, 3, 2, "carol"),
		},
		Scalars: []ScalarMap{
			rankMap(groupKV(catalog.Rank, 3, []uint16{10, 20})),
		},
		StrictMemberCount: true,
	}
	_, _, err := Merge(in)
	assert.ErrorIs(t, err, ErrMemberCount)
	assert.NotErrorIs(t, err, ErrUnknownMember)
	var mc *MemberCountMismatchError
	require.ErrorAs(t, err, &mc)
	assert.Equal(t, MemberCountMismatchError{Map: "rank", SubnetID: 3, Got: 2, Want: 3}, *mc)

	// Without the check, missing positions keep their zero value
	in.StrictMemberCount = false
	neurons, _, err := Merge(in)
	require.NoError(t, err)
	assert.Equal(t, uint16(10), neurons[NeuronKey{3, 0}].Rank)
	assert.Equal(t, uint16(20), neurons[NeuronKey{3, 1}].Rank)
	assert.Equal(t, uint16(0), neurons[NeuronKey{3, 2}].Rank)
}

func TestMerge_duplicateIdentity(t *testing.T) {
	neurons, hotkeys, err := Merge(MergeInput{
		Identities: []KV[string]{
			memberKV(catalog.Keys, 1, 0, "alice"),
			memberKV(catalog.Keys, 1, 0, "mallory"),
		},
		Scalars: []ScalarMap{
			activeMap(groupKV(catalog.Active, 1, []bool{true})),
		},
		StrictMemberCount: true,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "mallory"}, hotkeys)
	require.Len(t, neurons, 1)
	assert.Equal(t, "mallory", neurons[NeuronKey{1, 0}].Hotkey)
	assert.True(t, neurons[NeuronKey{1, 0}].Active)
}

func TestMerge_malformedKey(t *testing.T) {
	_, _, err := Merge(MergeInput{
		Identities: []KV[string]{{Key: []byte{1, 2, 3}, Value: "alice"}},
	})
	assert.ErrorIs(t, err, ErrMalformedKey)
	var mk *MalformedKeyError
	require.ErrorAs(t, err, &mk)
	assert.Equal(t, "keys", mk.Map)

	_, _, err = Merge(MergeInput{
		Identities: []KV[string]{memberKV(catalog.Keys, 1, 0, "alice")},
		Scalars: []ScalarMap{
			activeMap(KV[[]bool]{Key: []byte{1}, Value: []bool{true}}),
		},
	})
	require.ErrorAs(t, err, &mk)
	assert.Equal(t, "active", mk.Map)

	_, _, err = Merge(MergeInput{
		Identities: []KV[string]{memberKV(catalog.Keys, 1, 0, "alice")},
		Weights:    []KV[[]Weight]{{Key: []byte{0, 1}, Value: nil}},
	})
	require.ErrorAs(t, err, &mk)
	assert.Equal(t, "weights", mk.Map)
}

func TestMerge_empty(t *testing.T) {
	neurons, hotkeys, err := Merge(MergeInput{StrictMemberCount: true})
	require.NoError(t, err)
	assert.Empty(t, neurons)
	assert.NotNil(t, hotkeys)
	assert.Empty(t, hotkeys)
}
