package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"aird/internal/acl"
	"aird/internal/pipeline"
	"aird/internal/vectorstore"
)

var (
	queryUser      string
	queryVersion   int
	queryTopK      uint64
	queryThreshold float32
	queryStrict    bool
)

var queryCmd = &cobra.Command{
	Use:   "query <product> <text...>",
	Short: "ACL-aware retrieval against an indexed product",
	Long: `Runs a playground query: the user's grants are resolved first, the
search space is narrowed to the chunks they may see, then a k-NN search
ranks within that set. Version 0 targets the promoted version.

Example:
  aird query handbook "how do I rotate the api key" --user alice`,
	Args: cobra.MinimumNArgs(2),
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

		version := queryVersion
		if version == 0 {
			if prod.PromotedVersion != nil {
				version = *prod.PromotedVersion
			} else {
				version = prod.CurrentVersion
			}
		}
		collection := vectorstore.CollectionName(prod.WorkspaceID, prod.Name, version)
		spec, err := pipeline.ResolveQuerySpec(ctx, rt, prod.Embedding, collection, queryStrict)
		if err != nil {
			return err
		}
		engine, err := rt.Engine(spec)
		if err != nil {
			return err
		}

		playground := &acl.Playground{Catalog: rt.Catalog, Store: rt.Vectors, Engine: engine}
		res, err := playground.Query(ctx, queryUser, workspaceID, prod.Name, version,
			strings.Join(args[1:], " "), queryTopK, queryThreshold)
		if err != nil {
			return err
		}

		fmt.Printf("Collection %s, %d hit(s)\n", res.Collection, len(res.Hits))
		for i, h := range res.Hits {
			text := h.Text
			if len(text) > 200 {
				text = text[:200] + "..."
			}
			fmt.Printf("%d. [%.3f] %s (%s)\n   %s\n", i+1, h.Score, h.ChunkID, h.Section, text)
		}
		return nil
	},
}

func init() {
	queryCmd.Flags().StringVar(&queryUser, "user", "", "user id the grants are resolved for")
	queryCmd.Flags().IntVar(&queryVersion, "version", 0, "version to query (0 = promoted)")
	queryCmd.Flags().Uint64Var(&queryTopK, "top-k", 5, "number of hits")
	queryCmd.Flags().Float32Var(&queryThreshold, "score-threshold", 0, "minimum similarity score")
	queryCmd.Flags().BoolVar(&queryStrict, "strict", false, "fail on embedding dimension conflicts instead of adapting")
	_ = queryCmd.MarkFlagRequired("user")
}
