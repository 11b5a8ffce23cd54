package snapshot

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/taoscan/neuronsnap/catalog"
	"github.com/taoscan/neuronsnap/chain"
	"github.com/taoscan/neuronsnap/config/logger"
	"github.com/taoscan/neuronsnap/pool"
	"github.com/taoscan/neuronsnap/storage"
)

// KV is a storage entry with a decoded value
type KV[V any] struct {
	Key   []byte
	Value V
}

// Fetch reads all entries of storage map m at block at, using one
// connection from the pool for the whole iteration.
// Any failure, including a value that cannot be decoded, results in a
// TransportError for the map.
func Fetch[V any](ctx context.Context, p *pool.Pool[storage.Conn], at chain.Hash, m catalog.Map[V], l logrus.FieldLogger) ([]KV[V], error) {
	l = l.WithField(logger.MapField, m.Name)
	t0 := time.Now()

	kvs, err := fetch(ctx, p, at, m)
	if err != nil {
		metricFetchFailed.WithLabelValues(m.Name).Inc()
		l.WithError(err).Debug("Fetch failed")
		return nil, &TransportError{Map: m.Name, Err: err}
	}

	dt := time.Since(t0)
	metricFetchSeconds.WithLabelValues(m.Name).Observe(dt.Seconds())
	metricFetchEntries.WithLabelValues(m.Name).Add(float64(len(kvs)))
	l.WithFields(logrus.Fields{
		"entries":      len(kvs),
		"time_elapsed": dt.Round(time.Millisecond),
	}).Debug("Fetched map")
	return kvs, nil
}

func fetch[V any](ctx context.Context, p *pool.Pool[storage.Conn], at chain.Hash, m catalog.Map[V]) ([]KV[V], error) {
	lease, err := p.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer lease.Release()

	var kvs []KV[V]
	err = lease.Value().Iterate(ctx, at, m.Prefix(), func(kv storage.KV) error {
		v, err := m.Decode(kv.Value)
		if err != nil {
			return errors.Wrapf(err, "decode value of key 0x%x", kv.Key)
		}
		kvs = append(kvs, KV[V]{Key: kv.Key, Value: v})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return kvs, nil
}
