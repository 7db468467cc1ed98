package main

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/fruitbox12/validator-azero/afbackup"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newBackupCmd(log *slog.Logger, v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use: "backup SUBCOMMAND",

		Short: "Inspect session backups",
	}

	cmd.PersistentFlags().String("root", "", "Backup root directory, holding one subdirectory per session")

	cmd.AddCommand(
		&cobra.Command{
			Use: "check SESSION_ID",

			Short: "List a session's backup segments and verify that none are missing",

			Args: cobra.ExactArgs(1),

			RunE: func(cmd *cobra.Command, args []string) error {
				store, err := openBackup(v, args[0])
				if err != nil {
					return err
				}

				indices, err := store.ListSegments()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "segments: %v\n", indices)

				replay, next, err := afbackup.Recover(store)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "complete: %d bytes, next segment %d\n", len(replay), next)
				return nil
			},
		},
		&cobra.Command{
			Use: "dump SESSION_ID",

			Short: "Write the bytes a session would replay to standard output",

			Args: cobra.ExactArgs(1),

			RunE: func(cmd *cobra.Command, args []string) error {
				store, err := openBackup(v, args[0])
				if err != nil {
					return err
				}

				replay, _, err := afbackup.Recover(store)
				if err != nil {
					return err
				}

				log.Debug("Dumping backup", "dir", store.Dir(), "bytes", len(replay))
				_, err = cmd.OutOrStdout().Write(replay)
				return err
			},
		},
	)

	return cmd
}

// openBackup opens an existing session directory without modifying anything.
func openBackup(v *viper.Viper, sessionArg string) (*afbackup.DirStore, error) {
	root := v.GetString("root")
	if root == "" {
		return nil, fmt.Errorf("--root is required")
	}

	id, err := strconv.ParseUint(sessionArg, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid session ID %q: %w", sessionArg, err)
	}

	return afbackup.NewDirStore(afero.NewReadOnlyFs(afero.NewOsFs()), root, uint32(id))
}
