package status

import (
	"context"
	"sync"
	"time"

	"github.com/PowerDNS/simpleblob"
	"github.com/pkg/errors"
)

// MaxRecent is the number of snapshot summaries kept for the status page
const MaxRecent = 20

type info struct {
	mu     sync.Mutex
	recent []Summary
	st     simpleblob.Interface
}

// Summary describes a snapshot attempt
type Summary struct {
	BlockHash  string
	Neurons    int
	Hotkeys    int
	ExportName string
	Started    time.Time
	Duration   time.Duration
	Err        error
}

var gi info

func (i *info) ListBlobs(ctx context.Context) (simpleblob.BlobList, error) {
	i.mu.Lock()
	st := i.st
	i.mu.Unlock()
	if st == nil {
		return nil, errors.New("no export storage registered with status page")
	}
	return st.List(ctx, "")
}

// Recent returns the most recent snapshot summaries, newest first
func (i *info) Recent() []Summary {
	i.mu.Lock()
	defer i.mu.Unlock()
	res := make([]Summary, len(i.recent))
	for j, s := range i.recent {
		res[len(i.recent)-1-j] = s
	}
	return res
}

// AddSummary registers a snapshot attempt with the status page
func AddSummary(s Summary) {
	gi.mu.Lock()
	defer gi.mu.Unlock()
	gi.recent = append(gi.recent, s)
	if len(gi.recent) > MaxRecent {
		gi.recent = gi.recent[len(gi.recent)-MaxRecent:]
	}
}

// SetStorage registers the export storage with the status page
func SetStorage(st simpleblob.Interface) {
	gi.mu.Lock()
	defer gi.mu.Unlock()
	gi.st = st
}
