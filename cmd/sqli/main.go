// Command sqli is a thin CLI shim over the storage core: it does not
// parse SQL, it only accepts
// the one-shot --exec form and hands the statement text to the
// Database handle's Execute hook, following the cobra-based
// single-command CLI shape the AKJUS-bsc-erigon/coredao-org-core-chain
// pack repos use for their own one-shot subcommands.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/doquedb/sydcore"
	"github.com/doquedb/sydcore/internal/reorganize"
)

var execStatement string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sqli",
		Short: "One-shot statement runner for a sydcore database",
		RunE:  runExec,
	}
	cmd.Flags().StringVar(&execStatement, "exec", "", "statement text to dispatch")
	return cmd
}

func runExec(cmd *cobra.Command, args []string) error {
	if execStatement == "" {
		return fmt.Errorf("sqli: --exec is required")
	}
	stmt, err := classify(execStatement)
	if err != nil {
		return err
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("sqli: build logger: %w", err)
	}
	defer logger.Sync()

	db := sydcore.Open(sydcore.Config{ObjectCacheSize: 64 << 20, Logger: logger})
	plan, err := db.Execute(sydcore.Descriptor{
		Statement: stmt,
		Envelope:  reorganize.TxEnvelope{Grants: map[reorganize.PrivilegeCategory]uint32{reorganize.PrivilegeDatabase: ^uint32(0), reorganize.PrivilegeData: ^uint32(0)}},
	})
	if err != nil {
		return err
	}
	fmt.Printf("dispatched %s: needs_xa=%v start_implicit=%v log_to_db=%v log_to_system=%v\n",
		stmt, plan.NeedsXA, plan.StartImplicit, plan.LogToDB, plan.LogToSystem)
	return nil
}

// classify maps a leading SQL keyword onto a reorganize.StatementType.
// This is not a parser: anything beyond the leading keyword is the
// out-of-scope SQL parser/optimizer's job, not this collaborator's.
func classify(text string) (reorganize.StatementType, error) {
	fields := strings.Fields(strings.ToUpper(text))
	if len(fields) < 2 {
		return 0, fmt.Errorf("sqli: cannot classify statement %q", text)
	}
	switch fields[0] {
	case "CREATE":
		switch fields[1] {
		case "DATABASE":
			return reorganize.CreateDatabase, nil
		case "TABLE":
			return reorganize.CreateTable, nil
		case "INDEX":
			return reorganize.CreateIndex, nil
		case "AREA":
			return reorganize.CreateArea, nil
		}
	case "DROP":
		switch fields[1] {
		case "DATABASE":
			return reorganize.DropDatabase, nil
		case "TABLE":
			return reorganize.DropTable, nil
		case "INDEX":
			return reorganize.DropIndex, nil
		case "AREA":
			return reorganize.DropArea, nil
		}
	case "ALTER":
		switch fields[1] {
		case "TABLE":
			return reorganize.AlterTable, nil
		case "AREA":
			return reorganize.AlterArea, nil
		}
	case "MOVE":
		if fields[1] == "DATABASE" {
			return reorganize.MoveDatabase, nil
		}
	}
	return 0, fmt.Errorf("sqli: cannot classify statement %q", text)
}
