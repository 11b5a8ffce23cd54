// Package snapshot creates point-in-time snapshots of all neurons on the
// chain, by fetching the SubtensorModule storage maps at one block and
// merging them.
package snapshot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/taoscan/neuronsnap/catalog"
	"github.com/taoscan/neuronsnap/chain"
	"github.com/taoscan/neuronsnap/config"
	"github.com/taoscan/neuronsnap/pool"
	"github.com/taoscan/neuronsnap/storage"
	"github.com/taoscan/neuronsnap/utils"
)

// PoolName is the name of the connection pool in metrics
const PoolName = "snapshot"

// Options configure a Snapshotter
type Options struct {
	// Concurrency is the number of connections dialed per snapshot.
	// Defaults to config.DefaultConcurrency.
	Concurrency int

	// Maps restricts the scalar maps and the weights map that are fetched.
	// The keys map is always fetched. All maps are fetched if empty.
	Maps []string

	// StrictMemberCount, see MergeInput
	StrictMemberCount bool
}

// OptionsFromConfig returns the Options for a Config
func OptionsFromConfig(c config.Config) Options {
	return Options{
		Concurrency:       c.Concurrency,
		Maps:              c.Maps,
		StrictMemberCount: c.StrictMemberCount,
	}
}

// scalarFetcher fetches a single index map, ready to merge
type scalarFetcher interface {
	name() string
	fetch(ctx context.Context, p *pool.Pool[storage.Conn], at chain.Hash, l logrus.FieldLogger) (ScalarMap, error)
}

type scalarField[V any] struct {
	m   catalog.Map[[]V]
	set func(*Neuron, V)
}

func (f scalarField[V]) name() string {
	return f.m.Name
}

func (f scalarField[V]) fetch(ctx context.Context, p *pool.Pool[storage.Conn], at chain.Hash, l logrus.FieldLogger) (ScalarMap, error) {
	kvs, err := Fetch(ctx, p, at, f.m, l)
	if err != nil {
		return nil, err
	}
	return NewScalarMap(f.m.Name, kvs, f.set), nil
}

// scalarFields lists the single index maps in merge order
var scalarFields = []scalarFetcher{
	scalarField[bool]{catalog.Active, func(n *Neuron, v bool) { n.Active = v }},
	scalarField[uint16]{catalog.Rank, func(n *Neuron, v uint16) { n.Rank = v }},
	scalarField[uint16]{catalog.Trust, func(n *Neuron, v uint16) { n.Trust = v }},
	scalarField[uint64]{catalog.Emission, func(n *Neuron, v uint64) { n.Emission = v }},
	scalarField[uint16]{catalog.Consensus, func(n *Neuron, v uint16) { n.Consensus = v }},
	scalarField[uint16]{catalog.Incentive, func(n *Neuron, v uint16) { n.Incentive = v }},
	scalarField[uint16]{catalog.Dividends, func(n *Neuron, v uint16) { n.Dividends = v }},
	scalarField[uint64]{catalog.LastUpdate, func(n *Neuron, v uint64) { n.LastUpdate = v }},
	scalarField[uint16]{catalog.PruningScores, func(n *Neuron, v uint16) { n.PruningScores = v }},
	scalarField[uint16]{catalog.ValidatorTrust, func(n *Neuron, v uint16) { n.ValidatorTrust = v }},
}

// Snapshotter creates snapshots using connections from a storage backend
type Snapshotter struct {
	dial storage.Dialer
	opts Options
	l    logrus.FieldLogger
}

// New returns a new Snapshotter
func New(dial storage.Dialer, opts Options, logger logrus.FieldLogger) *Snapshotter {
	if opts.Concurrency < 1 {
		opts.Concurrency = config.DefaultConcurrency
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Snapshotter{
		dial: dial,
		opts: opts,
		l:    logger.WithField("component", "snapshot"),
	}
}

// wants reports if map name needs to be fetched
func (s *Snapshotter) wants(name string) bool {
	return len(s.opts.Maps) == 0 || lo.Contains(s.opts.Maps, name)
}

// Get creates a snapshot of all neurons at the block with hash checkpoint.
// It either returns a complete Result or an error, never a partial result.
// No timeout is applied, cancel the context to abort a stalled snapshot.
func (s *Snapshotter) Get(ctx context.Context, checkpoint string) (res *Result, err error) {
	t0 := time.Now()
	defer func() {
		if err != nil {
			metricSnapshotsFailed.WithLabelValues(errorKind(err)).Inc()
		}
	}()

	at, err := chain.ParseHash(checkpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCheckpoint, err)
	}
	if unknown := lo.Without(s.opts.Maps, catalog.Names()...); len(unknown) > 0 {
		return nil, fmt.Errorf("unknown maps: %s", strings.Join(unknown, ", "))
	}
	l := s.l.WithField("block", at.String())

	conns, err := s.dialAll(ctx)
	if err != nil {
		return nil, err
	}
	p := pool.New(PoolName, conns, l)
	defer func() {
		// All leases have been released once the fetch group is done
		if err := p.Close(storage.Conn.Close); err != nil {
			l.WithError(err).Warn("Error closing connections")
		}
	}()
	tDialed := time.Now()

	in := MergeInput{
		BlockHash:         at.String(),
		StrictMemberCount: s.opts.StrictMemberCount,
	}
	fields := lo.Filter(scalarFields, func(f scalarFetcher, _ int) bool {
		return s.wants(f.name())
	})
	in.Scalars = make([]ScalarMap, len(fields))

	numMaps := 1 + len(fields)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		kvs, err := Fetch(gctx, p, at, catalog.Keys, l)
		in.Identities = kvs
		return err
	})
	for i, f := range fields {
		i, f := i, f
		g.Go(func() error {
			sm, err := f.fetch(gctx, p, at, l)
			in.Scalars[i] = sm
			return err
		})
	}
	if s.wants(catalog.Weights.Name) {
		numMaps++
		g.Go(func() error {
			kvs, err := Fetch(gctx, p, at, catalog.Weights, l)
			in.Weights = kvs
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	tFetched := time.Now()

	merged, hotkeys, err := Merge(in)
	if err != nil {
		return nil, err
	}
	res = &Result{
		BlockHash: at.String(),
		Neurons: lo.MapToSlice(merged, func(_ NeuronKey, n *Neuron) Neuron {
			return *n
		}),
		Hotkeys: hotkeys,
	}
	tMerged := time.Now()

	metricSnapshots.Inc()
	metricSnapshotSeconds.Observe(tMerged.Sub(t0).Seconds())
	metricSnapshotNeurons.Set(float64(len(res.Neurons)))
	l.WithFields(logrus.Fields{
		"neurons":     len(res.Neurons),
		"hotkeys":     len(res.Hotkeys),
		"maps":        numMaps,
		"connections": len(conns),
		"time_dial":   utils.TimeDiff(tDialed, t0),
		"time_fetch":  utils.TimeDiff(tFetched, tDialed),
		"time_merge":  utils.TimeDiff(tMerged, tFetched),
		"time_total":  utils.TimeDiff(tMerged, t0),
	}).Info("Snapshot complete")
	return res, nil
}

// dialAll dials Options.Concurrency connections concurrently.
// If any dial fails, all established connections are closed again.
func (s *Snapshotter) dialAll(ctx context.Context) ([]storage.Conn, error) {
	conns := make([]storage.Conn, s.opts.Concurrency)
	g, gctx := errgroup.WithContext(ctx)
	for i := range conns {
		i := i
		g.Go(func() error {
			c, err := s.dial(gctx)
			if err != nil {
				return err
			}
			conns[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, c := range conns {
			if c != nil {
				_ = c.Close()
			}
		}
		return nil, &TransportError{Err: errors.Wrap(err, "dial")}
	}
	return conns, nil
}
