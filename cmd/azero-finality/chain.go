package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/fruitbox12/validator-azero/afchain"
	"github.com/fruitbox12/validator-azero/afleveldb"
	"github.com/fruitbox12/validator-azero/afsqlite"
	"github.com/fruitbox12/validator-azero/afstatus"
	"github.com/fruitbox12/validator-azero/afstore"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newChainCmd(log *slog.Logger, v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use: "chain SUBCOMMAND",

		Short: "Query block status in a chain store",
	}

	addStoreFlags(cmd)

	cmd.AddCommand(
		&cobra.Command{
			Use: "info",

			Short: "Print the genesis, best, and finalized blocks",

			Args: cobra.NoArgs,

			RunE: withProvider(log, v, func(ctx context.Context, w io.Writer, store afstore.ChainStore, p *afstatus.Provider, _ []string) error {
				info, err := store.Info(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "genesis:   %x\n", info.GenesisHash)
				fmt.Fprintf(w, "best:      %s\n", afchain.BlockID{Hash: info.BestHash, Number: info.BestNumber})
				fmt.Fprintf(w, "finalized: %s\n", afchain.BlockID{Hash: info.FinalizedHash, Number: info.FinalizedNumber})
				return nil
			}),
		},
		&cobra.Command{
			Use: "status HASH NUMBER",

			Short: "Print the status of one block",

			Args: cobra.ExactArgs(2),

			RunE: withProvider(log, v, func(ctx context.Context, w io.Writer, _ afstore.ChainStore, p *afstatus.Provider, args []string) error {
				id, err := parseBlockID(args[0], args[1])
				if err != nil {
					return err
				}
				st, err := p.StatusOf(ctx, id)
				if err != nil {
					return err
				}
				printStatus(w, st)
				return nil
			}),
		},
		&cobra.Command{
			Use: "finalized-at NUMBER",

			Short: "Print the justification of the canonical block at a height, if it has one",

			Args: cobra.ExactArgs(1),

			RunE: withProvider(log, v, func(ctx context.Context, w io.Writer, _ afstore.ChainStore, p *afstatus.Provider, args []string) error {
				n, err := strconv.ParseUint(args[0], 10, 64)
				if err != nil {
					return fmt.Errorf("invalid block number %q: %w", args[0], err)
				}
				j, ok, err := p.FinalizedAt(ctx, n)
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintf(w, "no justified block at height %d\n", n)
					return nil
				}
				fmt.Fprintf(w, "%s justification %x\n", j.Header.ID(), j.Raw)
				return nil
			}),
		},
		&cobra.Command{
			Use: "children HASH NUMBER",

			Short: "Print the known children of a block",

			Args: cobra.ExactArgs(2),

			RunE: withProvider(log, v, func(ctx context.Context, w io.Writer, _ afstore.ChainStore, p *afstatus.Provider, args []string) error {
				id, err := parseBlockID(args[0], args[1])
				if err != nil {
					return err
				}
				children, err := p.Children(ctx, id)
				if err != nil {
					return err
				}
				for _, c := range children {
					fmt.Fprintln(w, c.ID())
				}
				return nil
			}),
		},
	)

	return cmd
}

func addStoreFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().String("db", "", "Path to the chain store")
	cmd.PersistentFlags().String("engine", "sqlite", "Chain store engine (sqlite|leveldb)")
}

// openStore opens the chain store named by the --db and --engine flags.
func openStore(ctx context.Context, v *viper.Viper) (afstore.ChainStore, error) {
	path := v.GetString("db")
	if path == "" {
		return nil, fmt.Errorf("--db is required")
	}

	switch engine := v.GetString("engine"); engine {
	case "sqlite":
		return afsqlite.NewOnDiskStore(ctx, path)
	case "leveldb":
		return afleveldb.NewChainStore(path)
	default:
		return nil, fmt.Errorf("unknown store engine %q", engine)
	}
}

type providerFunc func(ctx context.Context, w io.Writer, store afstore.ChainStore, p *afstatus.Provider, args []string) error

func withProvider(log *slog.Logger, v *viper.Viper, fn providerFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		store, err := openStore(ctx, v)
		if err != nil {
			return err
		}
		defer func() {
			if err := store.Close(); err != nil {
				log.Warn("Error closing chain store", "err", err)
			}
		}()

		p := afstatus.NewProvider(log.With("sys", "status"), store, nil)
		return fn(ctx, cmd.OutOrStdout(), store, p, args)
	}
}

func parseBlockID(hashArg, numberArg string) (afchain.BlockID, error) {
	hash, err := hex.DecodeString(hashArg)
	if err != nil {
		return afchain.BlockID{}, fmt.Errorf("invalid block hash %q: %w", hashArg, err)
	}
	n, err := strconv.ParseUint(numberArg, 10, 64)
	if err != nil {
		return afchain.BlockID{}, fmt.Errorf("invalid block number %q: %w", numberArg, err)
	}
	return afchain.BlockID{Hash: hash, Number: n}, nil
}

func printStatus(w io.Writer, st afchain.BlockStatus) {
	switch st.Kind {
	case afchain.BlockStatusUnknown:
		fmt.Fprintln(w, st.Kind)
	case afchain.BlockStatusPresent:
		fmt.Fprintf(w, "%s %s parent=%x\n", st.Kind, st.Header.ID(), st.Header.ParentHash)
	case afchain.BlockStatusJustified:
		fmt.Fprintf(
			w, "%s %s parent=%x justification=%x\n",
			st.Kind, st.Header.ID(), st.Header.ParentHash, st.Justification.Raw,
		)
	}
}
