package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/PowerDNS/simpleblob"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/taoscan/neuronsnap/chain"
	"github.com/taoscan/neuronsnap/snapshot"
)

func init() {
	rootCmd.AddCommand(exportsCmd)

	exportsCmd.AddCommand(exportsListCmd)

	exportsCmd.AddCommand(exportsGetCmd)
	exportsGetCmd.Flags().StringP("output", "o", "",
		"Output filename for the uncompressed JSON, stdout if empty")
}

var exportsCmd = &cobra.Command{
	Use:   "exports",
	Short: "Exported snapshot operations (list, get)",
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

func getExporter(ctx context.Context) (*snapshot.Exporter, error) {
	if conf.Export.Type == "" {
		return nil, fmt.Errorf("export.type: no export storage configured")
	}
	st, err := simpleblob.GetBackend(ctx, conf.Export.Type, conf.Export.Options)
	if err != nil {
		return nil, err
	}
	return snapshot.NewExporter(st, conf.Export, logrus.StandardLogger()), nil
}

var exportsListCmd = &cobra.Command{
	Use:          "list",
	Short:        "List exported snapshots",
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(rootCtx, time.Minute)
		defer cancel()

		e, err := getExporter(ctx)
		if err != nil {
			return err
		}
		infos, err := e.List(ctx)
		if err != nil {
			return err
		}
		for _, info := range infos {
			fmt.Printf("%s\t%s\n", info.BlockHash, info.FullName)
		}
		return nil
	},
}

var exportsGetCmd = &cobra.Command{
	Use:          "get <block-hash>",
	Short:        "Download an exported snapshot as JSON",
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(rootCtx, time.Minute)
		defer cancel()

		outName, err := cmd.Flags().GetString("output")
		if err != nil {
			return err
		}
		at, err := chain.ParseHash(args[0])
		if err != nil {
			return err
		}

		e, err := getExporter(ctx)
		if err != nil {
			return err
		}
		res, err := e.Load(ctx, at)
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return err
		}
		data = append(data, '\n')
		if outName == "" {
			_, err = os.Stdout.Write(data)
			return err
		}
		return os.WriteFile(outName, data, 0666)
	},
}
