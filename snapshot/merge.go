package snapshot

import (
	"math"

	"github.com/taoscan/neuronsnap/catalog"
)

// ScalarMap is a fetched single index map that sets one neuron field per
// vector position.
type ScalarMap interface {
	Name() string
	apply(neurons map[NeuronKey]*Neuron, members map[uint16]int, strict bool) error
}

// NewScalarMap returns a ScalarMap that calls set for the neuron at every
// position of every subnet vector in kvs.
func NewScalarMap[V any](name string, kvs []KV[[]V], set func(*Neuron, V)) ScalarMap {
	return &scalarMap[V]{name: name, kvs: kvs, set: set}
}

type scalarMap[V any] struct {
	name string
	kvs  []KV[[]V]
	set  func(*Neuron, V)
}

func (s *scalarMap[V]) Name() string {
	return s.name
}

func (s *scalarMap[V]) apply(neurons map[NeuronKey]*Neuron, members map[uint16]int, strict bool) error {
	for _, kv := range s.kvs {
		group, err := DecodeGroupKey(kv.Key)
		if err != nil {
			return inMap(err, s.name)
		}
		for i, v := range kv.Value {
			if i > math.MaxUint16 {
				return &UnknownMemberError{Map: s.name, SubnetID: group, NeuronID: i}
			}
			n, exists := neurons[NeuronKey{SubnetID: group, NeuronID: uint16(i)}]
			if !exists {
				return &UnknownMemberError{Map: s.name, SubnetID: group, NeuronID: i}
			}
			s.set(n, v)
		}
		if strict && len(kv.Value) < members[group] {
			return &MemberCountMismatchError{
				Map:      s.name,
				SubnetID: group,
				Got:      len(kv.Value),
				Want:     members[group],
			}
		}
	}
	return nil
}

// MergeInput holds everything fetched for one snapshot
type MergeInput struct {
	BlockHash  string
	Identities []KV[string]
	Scalars    []ScalarMap // merged in this order
	Weights    []KV[[]Weight]

	// StrictMemberCount rejects subnet vectors that are shorter than the
	// number of neurons the identity map has for the subnet. Without it,
	// the missing fields keep their zero values.
	StrictMemberCount bool
}

// Merge combines the fetched maps into neurons.
// The identity map is merged first and determines which neurons exist.
// Scalar maps and the weights map can only set fields of existing neurons,
// anything else is an UnknownMemberError.
// It also returns all hotkeys in identity map order.
func Merge(in MergeInput) (map[NeuronKey]*Neuron, []string, error) {
	neurons := make(map[NeuronKey]*Neuron, len(in.Identities))
	hotkeys := make([]string, 0, len(in.Identities))

	for _, kv := range in.Identities {
		group, member, err := DecodeMemberKey(kv.Key)
		if err != nil {
			return nil, nil, inMap(err, catalog.Keys.Name)
		}
		// A duplicate key replaces the earlier neuron
		neurons[NeuronKey{SubnetID: group, NeuronID: member}] = &Neuron{
			SubnetID:  group,
			NeuronID:  member,
			BlockHash: in.BlockHash,
			Hotkey:    kv.Value,
			Weights:   []Weight{},
		}
		hotkeys = append(hotkeys, kv.Value)
	}

	members := make(map[uint16]int)
	for k := range neurons {
		members[k.SubnetID]++
	}

	for _, s := range in.Scalars {
		if err := s.apply(neurons, members, in.StrictMemberCount); err != nil {
			return nil, nil, err
		}
	}

	for _, kv := range in.Weights {
		group, member, err := DecodeMemberKey(kv.Key)
		if err != nil {
			return nil, nil, inMap(err, catalog.Weights.Name)
		}
		n, exists := neurons[NeuronKey{SubnetID: group, NeuronID: member}]
		if !exists {
			return nil, nil, &UnknownMemberError{
				Map:      catalog.Weights.Name,
				SubnetID: group,
				NeuronID: int(member),
			}
		}
		if kv.Value != nil {
			n.Weights = kv.Value
		}
	}

	return neurons, hotkeys, nil
}
