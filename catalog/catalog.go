// Package catalog describes the SubtensorModule storage maps that make up a
// neuron snapshot: where they live and how their values are encoded.
package catalog

import (
	"github.com/samber/lo"

	"github.com/taoscan/neuronsnap/chain"
	"github.com/taoscan/neuronsnap/scale"
)

// Pallet is the pallet all maps belong to
const Pallet = "SubtensorModule"

// KeyKind describes how the entity coordinates are embedded in a storage key
type KeyKind int

const (
	// SingleIndex maps are keyed by subnet id only. The value is a vector
	// indexed by neuron uid.
	SingleIndex KeyKind = iota + 1
	// DualIndex maps are keyed by subnet id and neuron uid.
	DualIndex
)

func (k KeyKind) String() string {
	switch k {
	case SingleIndex:
		return "single"
	case DualIndex:
		return "dual"
	default:
		return "unknown"
	}
}

// Weight is a single weight set by a neuron for another neuron in the
// same subnet.
type Weight struct {
	UID    uint16 `json:"uid"`
	Weight uint16 `json:"weight"`
}

// Descriptor is the type independent view of a Map
type Descriptor interface {
	MapName() string
	StorageName() string
	Kind() KeyKind
	Prefix() []byte
	DecodeAny(value []byte) (interface{}, error)
}

// Map describes a storage map with values of type V
type Map[V any] struct {
	Name    string  // name used in config, logs and metrics
	Storage string  // storage item name in the pallet
	KeyKind KeyKind // how to find the coordinates in the key
	Decode  func(value []byte) (V, error)
}

func (m Map[V]) MapName() string     { return m.Name }
func (m Map[V]) StorageName() string { return m.Storage }
func (m Map[V]) Kind() KeyKind       { return m.KeyKind }

// Prefix returns the storage key prefix shared by all entries of this map
func (m Map[V]) Prefix() []byte {
	return chain.StoragePrefix(Pallet, m.Storage)
}

func (m Map[V]) DecodeAny(value []byte) (interface{}, error) {
	return m.Decode(value)
}

func vecOf[T any](elem func(*scale.Decoder) (T, error)) func([]byte) ([]T, error) {
	return func(value []byte) ([]T, error) {
		return scale.DecodeAll(value, func(d *scale.Decoder) ([]T, error) {
			return scale.Vec(d, elem)
		})
	}
}

func decodeWeight(d *scale.Decoder) (Weight, error) {
	uid, err := d.U16()
	if err != nil {
		return Weight{}, err
	}
	w, err := d.U16()
	if err != nil {
		return Weight{}, err
	}
	return Weight{UID: uid, Weight: w}, nil
}

func decodeHotkey(value []byte) (string, error) {
	return scale.DecodeAll(value, scale.AccountID)
}

// The identity map. Its keys define which neurons exist.
var Keys = Map[string]{Name: "keys", Storage: "Keys", KeyKind: DualIndex, Decode: decodeHotkey}

// The weights map, merged last.
var Weights = Map[[]Weight]{Name: "weights", Storage: "Weights", KeyKind: DualIndex, Decode: vecOf(decodeWeight)}

// Per subnet vectors indexed by neuron uid
var (
	Active         = Map[[]bool]{Name: "active", Storage: "Active", KeyKind: SingleIndex, Decode: vecOf((*scale.Decoder).Bool)}
	Rank           = Map[[]uint16]{Name: "rank", Storage: "Rank", KeyKind: SingleIndex, Decode: vecOf((*scale.Decoder).U16)}
	Trust          = Map[[]uint16]{Name: "trust", Storage: "Trust", KeyKind: SingleIndex, Decode: vecOf((*scale.Decoder).U16)}
	Emission       = Map[[]uint64]{Name: "emission", Storage: "Emission", KeyKind: SingleIndex, Decode: vecOf((*scale.Decoder).U64)}
	Consensus      = Map[[]uint16]{Name: "consensus", Storage: "Consensus", KeyKind: SingleIndex, Decode: vecOf((*scale.Decoder).U16)}
	Incentive      = Map[[]uint16]{Name: "incentive", Storage: "Incentive", KeyKind: SingleIndex, Decode: vecOf((*scale.Decoder).U16)}
	Dividends      = Map[[]uint16]{Name: "dividends", Storage: "Dividends", KeyKind: SingleIndex, Decode: vecOf((*scale.Decoder).U16)}
	LastUpdate     = Map[[]uint64]{Name: "last_update", Storage: "LastUpdate", KeyKind: SingleIndex, Decode: vecOf((*scale.Decoder).U64)}
	PruningScores  = Map[[]uint16]{Name: "pruning_scores", Storage: "PruningScores", KeyKind: SingleIndex, Decode: vecOf((*scale.Decoder).U16)}
	ValidatorTrust = Map[[]uint16]{Name: "validator_trust", Storage: "ValidatorTrust", KeyKind: SingleIndex, Decode: vecOf((*scale.Decoder).U16)}
)

// All lists every map in the order they are merged
var All = []Descriptor{
	Keys,
	Active,
	Rank,
	Trust,
	Emission,
	Consensus,
	Incentive,
	Dividends,
	LastUpdate,
	PruningScores,
	ValidatorTrust,
	Weights,
}

// Names returns the names of all maps
func Names() []string {
	return lo.Map(All, func(d Descriptor, _ int) string {
		return d.MapName()
	})
}

// Lookup finds a map by name
func Lookup(name string) (Descriptor, bool) {
	return lo.Find(All, func(d Descriptor) bool {
		return d.MapName() == name
	})
}
