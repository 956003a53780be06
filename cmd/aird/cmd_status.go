package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"aird/internal/embedding"
	"aird/internal/pipeline"
	"aird/internal/types"
)

var statusCmd = &cobra.Command{
	Use:   "status <product>",
	Short: "Show a product's readiness and probe the embedding engine",
	Long: `Prints the product's version state, readiness fingerprint, and policy
verdict, then embeds a probe text twice and compares the results so a
nondeterministic or misconfigured embedding engine is caught before the
next run.`,
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

		fmt.Printf("Product %s (id %d, workspace %d)\n", prod.Name, prod.ID, prod.WorkspaceID)
		fmt.Printf("  current version:  %d\n", prod.CurrentVersion)
		if prod.PromotedVersion != nil {
			fmt.Printf("  promoted version: %d\n", *prod.PromotedVersion)
		} else {
			fmt.Printf("  promoted version: none\n")
		}
		fmt.Printf("  playbook:         %s\n", prod.PlaybookID)
		fmt.Printf("  embedding:        %s (dim %d)\n", prod.Embedding.Model, prod.Embedding.Dimension)

		if fp := prod.Fingerprint; fp != nil {
			fmt.Printf("  trust score:      %.1f\n", fp.AITrustScore)
			fmt.Printf("  secure:           %.1f\n", fp.Secure)
			fmt.Printf("  kb ready:         %.1f\n", fp.KBReady)
			if fp.SemanticSearchReadiness > 0 {
				fmt.Printf("  search readiness: %.1f\n", fp.SemanticSearchReadiness)
			}
		} else {
			fmt.Printf("  fingerprint:      not yet computed\n")
		}
		if prod.PolicyStatus != "" {
			fmt.Printf("  policy:           %s %v\n", prod.PolicyStatus, prod.PolicyViolations)
		}

		if run, err := rt.Catalog.LastRunForVersion(prod.ID, prod.CurrentVersion); err == nil && run != nil {
			fmt.Printf("  last run:         %d (%s)\n", run.ID, run.Status)
		}

		return probeEmbedding(rt, prod.Embedding)
	},
}

// probeEmbedding embeds the same text twice and reports whether the
// engine is deterministic within tolerance.
func probeEmbedding(rt *pipeline.Runtime, spec types.EmbeddingSpec) error {
	engine, err := rt.Engine(spec)
	if err != nil {
		return err
	}

	const probe = "embedding determinism probe"
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a, err := engine.Embed(ctx, probe)
	if err != nil {
		fmt.Printf("Embedding probe: engine unreachable (%v)\n", err)
		return nil
	}
	b, err := engine.Embed(ctx, probe)
	if err != nil {
		fmt.Printf("Embedding probe: engine unreachable (%v)\n", err)
		return nil
	}
	sim, err := embedding.CosineSimilarity(a, b)
	if err != nil {
		return err
	}
	verdict := "deterministic"
	if sim < 0.99 {
		verdict = "NONDETERMINISTIC, indexing metrics will flag this"
	}
	fmt.Printf("Embedding probe: %s, dim %d, self-similarity %.4f (%s)\n",
		engine.Name(), len(a), sim, verdict)
	return nil
}

var reapCmd = &cobra.Command{
	Use:   "reap",
	Short: "Purge soft-deleted artifacts past their retention window",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := buildRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.Catalog.Close()

		n, err := rt.Catalog.ReapExpired(time.Now(), func(bucket, key string) error {
			return rt.Objects.DeleteObject(ctx, bucket, key)
		})
		if err != nil {
			return err
		}
		fmt.Printf("Purged %d artifact(s)\n", n)
		return nil
	},
}
