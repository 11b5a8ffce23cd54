package snapshot

import (
	"sort"

	"github.com/taoscan/neuronsnap/catalog"
)

// Weight is a weight set by a neuron for another neuron in its subnet
type Weight = catalog.Weight

// NeuronKey identifies a neuron
type NeuronKey struct {
	SubnetID uint16
	NeuronID uint16
}

// Neuron is the merged state of one neuron at a block
type Neuron struct {
	SubnetID  uint16 `json:"subnet_id"`
	NeuronID  uint16 `json:"neuron_id"`
	BlockHash string `json:"block_hash"`
	Hotkey    string `json:"hotkey"`
	Active    bool   `json:"active"`

	Rank           uint16   `json:"rank"`
	Emission       uint64   `json:"emission"`
	Incentive      uint16   `json:"incentive"`
	Consensus      uint16   `json:"consensus"`
	Trust          uint16   `json:"trust"`
	ValidatorTrust uint16   `json:"validator_trust"`
	Dividends      uint16   `json:"dividends"`
	Weights        []Weight `json:"weights"`

	LastUpdate    uint64 `json:"last_update"`
	PruningScores uint16 `json:"pruning_scores"`
}

// Key returns the identifying key of the neuron
func (n *Neuron) Key() NeuronKey {
	return NeuronKey{SubnetID: n.SubnetID, NeuronID: n.NeuronID}
}

// Result is a complete snapshot
type Result struct {
	BlockHash string   `json:"block_hash"`
	Neurons   []Neuron `json:"neurons"`
	Hotkeys   []string `json:"hotkeys"` // identity map order, not deduplicated
}

// SortNeurons sorts the neurons by subnet id and uid
func (r *Result) SortNeurons() {
	sort.Slice(r.Neurons, func(i, j int) bool {
		a, b := r.Neurons[i], r.Neurons[j]
		if a.SubnetID != b.SubnetID {
			return a.SubnetID < b.SubnetID
		}
		return a.NeuronID < b.NeuronID
	})
}
