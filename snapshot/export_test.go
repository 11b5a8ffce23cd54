package snapshot

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/PowerDNS/simpleblob"
	"github.com/PowerDNS/simpleblob/backends/memory"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taoscan/neuronsnap/config"
)

func testResult() *Result {
	return &Result{
		BlockHash: testBlock.String(),
		Neurons: []Neuron{
			{
				SubnetID:  1,
				NeuronID:  0,
				BlockHash: testBlock.String(),
				Hotkey:    "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY",
				Active:    true,
				Rank:      65535,
				Emission:  1 << 40,
				Weights:   []Weight{{UID: 1, Weight: 100}},
			},
			{
				SubnetID:  1,
				NeuronID:  1,
				BlockHash: testBlock.String(),
				Hotkey:    "5FHneW46xGXgs5mUiveU4sbTyGBzmstUspZC92UhjJM694ty",
				Weights:   []Weight{},
			},
		},
		Hotkeys: []string{
			"5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY",
			"5FHneW46xGXgs5mUiveU4sbTyGBzmstUspZC92UhjJM694ty",
		},
	}
}

func TestDumpData_LoadData(t *testing.T) {
	res := testResult()
	data, stats, err := DumpData(res)
	require.NoError(t, err)
	assert.Equal(t, len(data), int(stats.CompressedSize))
	assert.Greater(t, int(stats.JSONSize), 0)

	loaded, err := LoadData(data)
	require.NoError(t, err)
	assert.Equal(t, res, loaded)

	_, err = LoadData([]byte("not gzip"))
	assert.Error(t, err)
}

func TestExportName(t *testing.T) {
	name := ExportName("neurons", testBlock)
	assert.Equal(t, "neurons__"+testBlock.String()+".json.gz", name)

	info, err := ParseExportName(name)
	require.NoError(t, err)
	assert.Equal(t, ExportInfo{FullName: name, Prefix: "neurons", BlockHash: testBlock}, info)

	for _, bad := range []string{
		"neurons",
		"neurons__" + testBlock.String() + ".pb.gz",
		"neurons__0x1234.json.gz",
		"neurons__" + testBlock.String() + "__x.json.gz",
		testBlock.String() + ".json.gz",
	} {
		_, err := ParseExportName(bad)
		assert.Error(t, err, bad)
	}
}

func TestExporter(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	l, _ := test.NewNullLogger()
	e := NewExporter(st, config.Export{Prefix: "neurons", RetryCount: 1}, l)

	res := testResult()
	name, err := e.Export(ctx, res)
	require.NoError(t, err)
	assert.Equal(t, ExportName("neurons", testBlock), name)

	// Blobs that are not exports are ignored
	require.NoError(t, st.Store(ctx, "neurons__garbage", []byte("x")))
	require.NoError(t, st.Store(ctx, "other__"+testBlock.String()+".json.gz", []byte("x")))

	infos, err := e.List(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, testBlock, infos[0].BlockHash)

	loaded, err := e.Load(ctx, testBlock)
	require.NoError(t, err)
	assert.Equal(t, res, loaded)
}

// flakyStorage fails the first n Store calls
type flakyStorage struct {
	simpleblob.Interface
	n int
}

func (f *flakyStorage) Store(ctx context.Context, name string, data []byte) error {
	if f.n > 0 {
		f.n--
		return fmt.Errorf("storage unavailable")
	}
	return f.Interface.Store(ctx, name, data)
}

func TestExporter_retry(t *testing.T) {
	ctx := context.Background()
	l, hook := test.NewNullLogger()
	st := &flakyStorage{Interface: memory.New(), n: 2}
	c := config.Export{Prefix: "neurons", RetryCount: 3, RetryInterval: time.Millisecond}

	_, err := NewExporter(st, c, l).Export(ctx, testResult())
	require.NoError(t, err)
	assert.Equal(t, "Stored snapshot", hook.LastEntry().Message)

	st.n = 3
	_, err = NewExporter(st, c, l).Export(ctx, testResult())
	assert.EqualError(t, err, "storage unavailable")
}
