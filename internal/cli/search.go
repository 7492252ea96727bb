package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/neuralquery/internal/domain"
	"github.com/kailas-cloud/neuralquery/internal/domain/search/request"
	"github.com/kailas-cloud/neuralquery/internal/domain/search/result"
	neuralquery "github.com/kailas-cloud/neuralquery/pkg/sdk"
)

type searchFlags struct {
	topK   int
	asJSON bool
	server string
	apiKey string
}

type searchOutput struct {
	Results []searchOutputMatch `json:"results"`
	Query   string              `json:"query"`
	TopK    int                 `json:"top_k"`
}

type searchOutputMatch struct {
	ID       string          `json:"id"`
	Score    float64         `json:"score"`
	Metadata domain.Metadata `json:"metadata"`
}

func newSearchCommand(g *globalFlags) *cobra.Command {
	f := &searchFlags{}
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run one query against the configured backend",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var topK *int
			if cmd.Flags().Changed("top-k") {
				topK = &f.topK
			}
			query := strings.Join(args, " ")

			var (
				out searchOutput
				err error
			)
			if f.server != "" {
				out, err = searchRemote(cmd.Context(), f.server, f.apiKey, query, topK)
			} else {
				out, err = runSearch(cmd.Context(), g, query, topK)
			}
			if err != nil {
				return err
			}
			return writeSearchOutput(cmd.OutOrStdout(), out, f.asJSON)
		},
	}
	cmd.Flags().IntVarP(&f.topK, "top-k", "k", request.DefaultTopK, "number of results")
	cmd.Flags().BoolVar(&f.asJSON, "json", false, "print the response as JSON")
	cmd.Flags().StringVar(&f.server, "server", "", "query a running server at this URL instead of the backend")
	cmd.Flags().StringVar(&f.apiKey, "api-key", os.Getenv("NEURALQUERY_API_KEY"), "bearer token for --server")
	return cmd
}

// runSearch embeds and queries in-process against the configured backend.
func runSearch(ctx context.Context, g *globalFlags, query string, topK *int) (searchOutput, error) {
	a, cleanup, err := g.bootstrap()
	if err != nil {
		return searchOutput{}, err
	}
	defer cleanup()

	req, err := request.New(query, topK, a.Limits())
	if err != nil {
		return searchOutput{}, err
	}
	if err := a.LoadEmbedder(ctx); err != nil {
		return searchOutput{}, err
	}
	if err := a.WaitForBackend(ctx); err != nil {
		return searchOutput{}, err
	}

	resp, err := a.SearchService().Search(ctx, &req)
	if err != nil {
		return searchOutput{}, err
	}
	return toSearchOutput(resp), nil
}

// searchRemote sends the query to a running server. Validation happens server-side.
func searchRemote(ctx context.Context, server, apiKey, query string, topK *int) (searchOutput, error) {
	client, err := neuralquery.New(server, neuralquery.WithAPIKey(apiKey))
	if err != nil {
		return searchOutput{}, err
	}
	var opts []neuralquery.SearchOption
	if topK != nil {
		opts = append(opts, neuralquery.WithTopK(*topK))
	}
	res, err := client.Search(ctx, query, opts...)
	if err != nil {
		return searchOutput{}, err
	}

	out := searchOutput{Results: make([]searchOutputMatch, len(res.Results)), Query: res.Query, TopK: res.TopK}
	for i, m := range res.Results {
		out.Results[i] = searchOutputMatch{ID: m.ID, Score: m.Score, Metadata: m.Metadata}
	}
	return out, nil
}

func toSearchOutput(resp result.Response) searchOutput {
	out := searchOutput{Results: make([]searchOutputMatch, len(resp.Results)), Query: resp.Query, TopK: resp.TopK}
	for i := range resp.Results {
		m := &resp.Results[i]
		out.Results[i] = searchOutputMatch{ID: m.ID(), Score: m.Score(), Metadata: m.Metadata()}
	}
	return out
}

func writeSearchOutput(w io.Writer, out searchOutput, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	if len(out.Results) == 0 {
		fmt.Fprintf(w, "No results for %q.\n", out.Query)
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tID\tSCORE\tMETADATA")
	for i, m := range out.Results {
		fmt.Fprintf(tw, "%d\t%s\t%.4f\t%s\n", i+1, m.ID, m.Score, formatMetadata(m.Metadata))
	}
	return tw.Flush()
}

func formatMetadata(md domain.Metadata) string {
	keys := make([]string, 0, len(md))
	for k := range md {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, md[k])
	}
	return strings.Join(parts, " ")
}
