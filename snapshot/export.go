package snapshot

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/PowerDNS/simpleblob"
	"github.com/c2h5oh/datasize"
	jsoniter "github.com/json-iterator/go"
	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/taoscan/neuronsnap/chain"
	"github.com/taoscan/neuronsnap/config"
	"github.com/taoscan/neuronsnap/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ExportExtension is the file extension of exported snapshots
const ExportExtension = "json.gz"

// LoadData loads exported snapshot contents, which are gzipped JSON
func LoadData(data []byte) (*Result, error) {
	// Uncompress
	g, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	jsonData, err := io.ReadAll(g)
	if err != nil {
		return nil, err
	}
	if err := g.Close(); err != nil {
		return nil, err
	}

	res := new(Result)
	if err := json.Unmarshal(jsonData, res); err != nil {
		return nil, errors.Wrap(err, "decode json")
	}
	return res, nil
}

// DumpData returns a compressed Result
func DumpData(res *Result) ([]byte, DumpDataStats, error) {
	var stat DumpDataStats
	t0 := time.Now()

	out := bytes.NewBuffer(make([]byte, 0, datasize.MB))
	gw, err := gzip.NewWriterLevel(out, gzip.BestSpeed)
	if err != nil {
		return nil, stat, err
	}
	cw := &countingWriter{w: gw}
	if err := json.NewEncoder(cw).Encode(res); err != nil {
		return nil, stat, err
	}
	stat.JSONSize = datasize.ByteSize(cw.n)

	if err = gw.Close(); err != nil {
		return nil, stat, err
	}
	stat.TCompressed = time.Since(t0)

	compressedData := out.Bytes()
	stat.CompressedSize = datasize.ByteSize(len(compressedData))
	return compressedData, stat, nil
}

type DumpDataStats struct {
	TCompressed    time.Duration     // time it took to marshal and compress
	JSONSize       datasize.ByteSize // uncompressed JSON size
	CompressedSize datasize.ByteSize // compressed size
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// ExportName returns the blob name for an exported snapshot
func ExportName(prefix string, at chain.Hash) string {
	return fmt.Sprintf("%s__%s.%s", prefix, at, ExportExtension)
}

// ExportInfo is the information contained in an export name
type ExportInfo struct {
	FullName  string
	Prefix    string
	BlockHash chain.Hash
}

// ParseExportName parses a name created by ExportName
func ParseExportName(name string) (ExportInfo, error) {
	var empty ExportInfo
	basename, found := strings.CutSuffix(name, "."+ExportExtension)
	if !found {
		return empty, fmt.Errorf("unexpected extension: %s", name)
	}
	p := strings.Split(basename, "__")
	if len(p) != 2 {
		return empty, fmt.Errorf("expected 2 name parts: %s", name)
	}
	at, err := chain.ParseHash(p[1])
	if err != nil {
		return empty, errors.Wrapf(err, "invalid block hash in %s", name)
	}
	return ExportInfo{
		FullName:  name,
		Prefix:    p[0],
		BlockHash: at,
	}, nil
}

// Exporter stores snapshots in blob storage
type Exporter struct {
	st simpleblob.Interface
	c  config.Export
	l  logrus.FieldLogger
}

// NewExporter returns an Exporter that stores to st
func NewExporter(st simpleblob.Interface, c config.Export, logger logrus.FieldLogger) *Exporter {
	if c.RetryCount < 1 {
		c.RetryCount = 1
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Exporter{
		st: st,
		c:  c,
		l:  logger.WithField("component", "export"),
	}
}

// Export stores the snapshot and returns its name.
// Failed stores are retried up to the configured retry count.
func (e *Exporter) Export(ctx context.Context, res *Result) (string, error) {
	at, err := chain.ParseHash(res.BlockHash)
	if err != nil {
		return "", err
	}
	t0 := time.Now()
	out, dds, err := DumpData(res)
	if err != nil {
		return "", err
	}
	tDumped := time.Now()

	name := ExportName(e.c.Prefix, at)
	l := e.l.WithField("export_name", name)
	for i := 0; i < e.c.RetryCount; i++ {
		if i > 0 {
			if err := utils.SleepContext(ctx, e.c.RetryInterval); err != nil {
				return "", err
			}
		}
		err = e.st.Store(ctx, name, out)
		if err != nil {
			l.WithError(err).Warn("Store failed, retrying")
			metricExportFailed.Inc()
			continue
		}
		break
	}
	if err != nil {
		l.WithError(err).Warn("Store failed too many times, giving up")
		return "", err
	}
	tStored := time.Now()
	metricExportBytes.Add(float64(len(out)))

	l.WithFields(logrus.Fields{
		"time_compress": dds.TCompressed.Round(time.Millisecond),
		"time_store":    utils.TimeDiff(tStored, tDumped),
		"time_total":    utils.TimeDiff(tStored, t0),
		"json_size":     dds.JSONSize.HumanReadable(),
		"export_size":   dds.CompressedSize.HumanReadable(),
	}).Info("Stored snapshot")
	return name, nil
}

// List returns all exports with the configured prefix, ordered by name.
// Blobs that do not look like exports are skipped.
func (e *Exporter) List(ctx context.Context) ([]ExportInfo, error) {
	list, err := e.st.List(ctx, e.c.Prefix+"__")
	if err != nil {
		return nil, err
	}
	var infos []ExportInfo
	for _, name := range list.Names() {
		info, err := ParseExportName(name)
		if err != nil {
			e.l.WithError(err).Debug("Skipping blob")
			continue
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].FullName < infos[j].FullName
	})
	return infos, nil
}

// Load loads the export of the snapshot at block at
func (e *Exporter) Load(ctx context.Context, at chain.Hash) (*Result, error) {
	data, err := e.st.Load(ctx, ExportName(e.c.Prefix, at))
	if err != nil {
		return nil, err
	}
	return LoadData(data)
}
