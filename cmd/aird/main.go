package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"aird/internal/catalog"
	"aird/internal/config"
	"aird/internal/extract"
	"aird/internal/logging"
	"aird/internal/objectstore"
	"aird/internal/pipeline"
	"aird/internal/playbook"
	"aird/internal/types"
	"aird/internal/vectorstore"
)

var (
	// Global flags
	configPath  string
	verbose     bool
	workspaceID int64

	cfg config.Config
)

var rootCmd = &cobra.Command{
	Use:   "aird",
	Short: "aird - AI-Ready Dataset pipeline",
	Long: `aird turns raw documents into scored, indexed, access-controlled
AI-ready datasets.

A run moves one product version through preprocess, scoring,
fingerprinting, policy, optimization, indexing, validation, and
reporting. Versions that clear policy can be promoted to the production
alias and queried through the ACL-aware playground.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if verbose {
			cfg.Logging.Level = "debug"
		}
		return logging.Initialize(cfg.Logging)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

// buildRuntime wires the configured backends into a pipeline runtime.
func buildRuntime(ctx context.Context) (*pipeline.Runtime, error) {
	cat, err := catalog.Open(cfg.Catalog.Path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}

	var objects objectstore.ObjectStore
	switch cfg.Storage.Backend {
	case "s3":
		objects, err = objectstore.NewS3Store(ctx, cfg.Storage.Region)
	default:
		objects, err = objectstore.NewMinioStore(objectstore.MinioOptions{
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			Secure:    cfg.Storage.Secure,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("connect object store: %w", err)
	}

	vectors, err := vectorstore.NewQdrantStore(vectorstore.Config{
		Host:   cfg.Vector.Host,
		Port:   cfg.Vector.Port,
		APIKey: cfg.Vector.APIKey,
		UseTLS: cfg.Vector.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("connect vector store: %w", err)
	}

	return &pipeline.Runtime{
		Catalog:   cat,
		Objects:   objects,
		Vectors:   vectors,
		Playbooks: playbook.NewLoader(cfg.Pipeline.PlaybookDir),
		Extract:   extract.NewRegistry(),
		Config:    &cfg,
	}, nil
}

// resolveProduct finds the named product in the workspace, creating it
// when create is set.
func resolveProduct(rt *pipeline.Runtime, name string, create bool) (*catalog.Product, error) {
	prod, err := rt.Catalog.FindProduct(workspaceID, name)
	if err != nil {
		return nil, err
	}
	if prod != nil {
		return prod, nil
	}
	if !create {
		return nil, fmt.Errorf("%w: product %q not found in workspace %d", types.ErrInputMissing, name, workspaceID)
	}
	return rt.Catalog.CreateProduct(workspaceID, name, cfg.Pipeline.DefaultPlaybook, types.EmbeddingSpec{
		Model:     cfg.Embedding.Model,
		Dimension: cfg.Embedding.Dimension,
	})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "aird.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().Int64Var(&workspaceID, "workspace", 1, "workspace id")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(stageCmd)
	rootCmd.AddCommand(promoteCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(reapCmd)
}
