package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"kanban/internal/kanban"
	"kanban/internal/seed"
)

var seedCmd = &cobra.Command{
	Use:   "seed [file]",
	Short: "Import boards from a seed document",
	Long: `seed reads a {"boards":[...]} document and imports each board in its
own transaction. Boards that fail are reported and the rest still load.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := readDocument(args[0])
		if err != nil {
			return err
		}
		cfg, log, err := loadConfig(cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		st, err := openStore(cmd.Context(), cfg, log)
		if err != nil {
			return err
		}
		defer st.Close()

		rep, err := seed.Import(cmd.Context(), st, doc)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, id := range rep.Imported {
			fmt.Fprintf(out, "imported board #%d\n", id)
		}
		for _, f := range rep.Failed {
			log.Error("seed board", "board", f.Board, "id", f.ID, "err", f.Err)
			fmt.Fprintf(out, "failed board #%d %q: %v\n", f.ID, f.Board, f.Err)
		}
		if len(rep.Failed) > 0 {
			return fmt.Errorf("%d of %d boards failed", len(rep.Failed), len(doc.Boards))
		}
		return nil
	},
}

var assignOut string

var assignIDsCmd = &cobra.Command{
	Use:   "assign-ids [file]",
	Short: "Number every entity in a seed document",
	Long: `assign-ids rewrites every id in the document sequentially per entity
kind and fixes up parent references. The file is rewritten in place unless
-o is given.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := readDocument(args[0])
		if err != nil {
			return err
		}
		seed.AssignIDs(&doc, kanban.NewAssigner(), true)

		dst := assignOut
		if dst == "" {
			dst = args[0]
		}
		f, err := os.Create(dst)
		if err != nil {
			return err
		}
		if err := seed.Write(f, doc); err != nil {
			_ = f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "numbered %d boards into %s\n", len(doc.Boards), dst)
		return nil
	},
}

func init() {
	assignIDsCmd.Flags().StringVarP(&assignOut, "output", "o", "", "write to this file instead of the input")
}

func readDocument(path string) (seed.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return seed.Document{}, err
	}
	defer f.Close()
	return seed.Load(f)
}
