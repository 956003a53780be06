package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"aird/internal/pipeline"
)

var (
	runPlaybook string
	runReingest bool
)

var runCmd = &cobra.Command{
	Use:   "run <product> [files...]",
	Short: "Ingest files and run the full pipeline",
	Long: `Lands the given local files in the raw bucket for the product's
current version, then runs every stage in order. With no files, the
stages run against what is already ingested for the version.

Example:
  aird run handbook docs/*.pdf docs/*.md
  aird run handbook --reingest updated/*.md`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := buildRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.Catalog.Close()

		prod, err := resolveProduct(rt, args[0], true)
		if err != nil {
			return err
		}

		version := prod.CurrentVersion
		if runReingest {
			version, err = rt.Catalog.BumpVersion(prod.ID)
			if err != nil {
				return err
			}
			fmt.Printf("Reingesting %s as version %d\n", prod.Name, version)
		}

		for _, path := range args[1:] {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			raw, err := pipeline.Ingest(ctx, rt, prod, version, filepath.Base(path), data, "local")
			if err != nil {
				return fmt.Errorf("ingest %s: %w", path, err)
			}
			fmt.Printf("Ingested %s (%d bytes)\n", raw.FileStem, raw.Size)
		}

		run, err := pipeline.NewRunner(rt).Run(ctx, prod.ID, version, pipeline.RunOptions{
			PlaybookID: runPlaybook,
			DagID:      "cli",
		})
		if err != nil {
			return err
		}
		fmt.Printf("Run %d finished: %s\n", run.ID, run.Status)
		return nil
	},
}

var stagePlaybook string

var stageCmd = &cobra.Command{
	Use:   "stage <name> <product>",
	Short: "Run a single pipeline stage",
	Long: `Executes one stage against the product's current version. Useful for
re-running scoring or indexing after a config change without paying for
the whole pipeline again.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := buildRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.Catalog.Close()

		prod, err := resolveProduct(rt, args[1], false)
		if err != nil {
			return err
		}

		run, err := pipeline.NewRunner(rt).RunStage(ctx, prod.ID, prod.CurrentVersion, args[0], stagePlaybook)
		if err != nil {
			return err
		}
		fmt.Printf("Stage run %d finished: %s\n", run.ID, run.Status)
		return nil
	},
}

var promoteVersion int

var promoteCmd = &cobra.Command{
	Use:   "promote <product>",
	Short: "Point the production alias at a version",
	Long: `Swaps the product's production alias to the given version's
collection in one atomic alias operation. Refuses empty collections.
Defaults to the current version.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := buildRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.Catalog.Close()

		prod, err := resolveProduct(rt, args[0], false)
		if err != nil {
			return err
		}

		alias, err := pipeline.Promote(ctx, rt, prod.ID, promoteVersion)
		if err != nil {
			return err
		}
		fmt.Printf("Promoted %s: alias %s\n", prod.Name, alias)
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runPlaybook, "playbook", "", "playbook id override (TECH, SCANNED, REGULATORY, ...)")
	runCmd.Flags().BoolVar(&runReingest, "reingest", false, "bump the version before ingesting")
	stageCmd.Flags().StringVar(&stagePlaybook, "playbook", "", "playbook id override")
	promoteCmd.Flags().IntVar(&promoteVersion, "version", 0, "version to promote (0 = current)")
}
