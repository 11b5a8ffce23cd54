package commands

import (
	"bufio"
	"context"
	"io"
	"os"
	"time"

	"github.com/PowerDNS/simpleblob"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/taoscan/neuronsnap/snapshot"
	"github.com/taoscan/neuronsnap/status"
	"github.com/taoscan/neuronsnap/storage"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	outputFile  string
	concurrency int
	noExport    bool
)

func init() {
	rootCmd.AddCommand(snapshotCmd)
	snapshotCmd.Flags().StringVarP(&outputFile, "output", "o", "",
		"Write the snapshots as JSON lines to this file, '-' for stdout")
	snapshotCmd.Flags().IntVar(&concurrency, "concurrency", 0,
		"Number of node connections, overrides the config")
	snapshotCmd.Flags().BoolVar(&noExport, "no-export", false,
		"Do not export to the configured export storage")
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot <block-hash>...",
	Short: "Create neuron snapshots at the given blocks",
	Long: `Create neuron snapshots at the given blocks.

Every block hash results in one snapshot, and snapshots are created one
after the other. The first failure aborts the command.`,
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := rootCtx
		status.StartHTTPServer(conf)

		opts := snapshot.OptionsFromConfig(conf)
		if concurrency > 0 {
			opts.Concurrency = concurrency
		}
		dial, err := storage.GetBackend(conf.Node)
		if err != nil {
			return err
		}
		s := snapshot.New(dial, opts, logrus.StandardLogger())

		var exporter *snapshot.Exporter
		if conf.Export.Type != "" && !noExport {
			st, err := simpleblob.GetBackend(ctx, conf.Export.Type, conf.Export.Options)
			if err != nil {
				return err
			}
			logrus.WithField("export_type", conf.Export.Type).Info("Export storage initialised")
			status.SetStorage(st)
			exporter = snapshot.NewExporter(st, conf.Export, logrus.StandardLogger())
		}

		var out *bufio.Writer
		switch outputFile {
		case "":
		case "-":
			out = bufio.NewWriter(os.Stdout)
		default:
			f, err := os.Create(outputFile)
			if err != nil {
				return err
			}
			defer func() { _ = f.Close() }()
			out = bufio.NewWriter(f)
		}

		for _, checkpoint := range args {
			sum, err := runSnapshot(ctx, s, exporter, checkpoint, out)
			status.AddSummary(sum)
			if err != nil {
				return err
			}
		}
		if out != nil {
			return out.Flush()
		}
		return nil
	},
}

func runSnapshot(ctx context.Context, s *snapshot.Snapshotter, exporter *snapshot.Exporter, checkpoint string, out io.Writer) (sum status.Summary, err error) {
	sum.BlockHash = checkpoint
	sum.Started = time.Now()
	defer func() {
		sum.Duration = time.Since(sum.Started).Round(time.Millisecond)
		sum.Err = err
	}()

	res, err := s.Get(ctx, checkpoint)
	if err != nil {
		return sum, err
	}
	res.SortNeurons()
	sum.BlockHash = res.BlockHash
	sum.Neurons = len(res.Neurons)
	sum.Hotkeys = len(res.Hotkeys)

	if exporter != nil {
		sum.ExportName, err = exporter.Export(ctx, res)
		if err != nil {
			return sum, err
		}
	}
	if out != nil {
		if err := json.NewEncoder(out).Encode(res); err != nil {
			return sum, err
		}
	}
	return sum, nil
}
