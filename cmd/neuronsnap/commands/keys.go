package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/taoscan/neuronsnap/catalog"
	"github.com/taoscan/neuronsnap/chain"
	"github.com/taoscan/neuronsnap/snapshot"
	"github.com/taoscan/neuronsnap/storage"
	"github.com/taoscan/neuronsnap/utils"
)

var keysRaw bool

func init() {
	rootCmd.AddCommand(keysCmd)
	keysCmd.Flags().BoolVar(&keysRaw, "raw", false, "Show raw values instead of decoded values")
}

var keysCmd = &cobra.Command{
	Use:   "keys <block-hash> <map>",
	Short: "Dump the entries of one storage map for debugging",
	Long: fmt.Sprintf(`Dump the entries of one storage map for debugging.

Available maps: %s`, strings.Join(catalog.Names(), ", ")),
	Args:         cobra.ExactArgs(2),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := rootCtx
		at, err := chain.ParseHash(args[0])
		if err != nil {
			return err
		}
		m, ok := catalog.Lookup(args[1])
		if !ok {
			return fmt.Errorf("unknown map %q, must be one of: %s",
				args[1], strings.Join(catalog.Names(), ", "))
		}

		dial, err := storage.GetBackend(conf.Node)
		if err != nil {
			return err
		}
		c, err := dial(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = c.Close() }()

		// Buffered output speeds things up
		out := bufio.NewWriter(os.Stdout)
		defer func() { _ = out.Flush() }()
		outf := func(sfmt string, args ...any) {
			_, _ = fmt.Fprintf(out, sfmt, args...)
		}

		prefixLen := len(m.Prefix())
		n := 0
		err = c.Iterate(ctx, at, m.Prefix(), func(kv storage.KV) error {
			n++
			coords, err := displayCoords(m.Kind(), kv.Key)
			if err != nil {
				return err
			}
			if keysRaw {
				outf("%s %s  =  %s\n", utils.DisplayKey(kv.Key, prefixLen), coords,
					utils.DisplayASCII(kv.Value))
				return nil
			}
			v, err := m.DecodeAny(kv.Value)
			if err != nil {
				return fmt.Errorf("decode value of key %s: %w", utils.DisplayKey(kv.Key, prefixLen), err)
			}
			outf("%s %s  =  %v\n", utils.DisplayKey(kv.Key, prefixLen), coords, v)
			return nil
		})
		if err != nil {
			return err
		}
		outf("\n### %s (%s.%s): %d entries at %s\n",
			m.MapName(), catalog.Pallet, m.StorageName(), n, at)
		return nil
	},
}

func displayCoords(kind catalog.KeyKind, key []byte) (string, error) {
	switch kind {
	case catalog.SingleIndex:
		group, err := snapshot.DecodeGroupKey(key)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(subnet=%d)", group), nil
	case catalog.DualIndex:
		group, member, err := snapshot.DecodeMemberKey(key)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(subnet=%d, uid=%d)", group, member), nil
	default:
		return "", fmt.Errorf("unsupported key kind: %v", kind)
	}
}
