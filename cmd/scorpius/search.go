package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/scorpius/internal/domain"
	"github.com/kailas-cloud/scorpius/internal/domain/procurement"
	"github.com/kailas-cloud/scorpius/internal/domain/search/filter"
	"github.com/kailas-cloud/scorpius/internal/domain/search/request"
	"github.com/kailas-cloud/scorpius/internal/domain/search/result"
)

type searchFlags struct {
	collection string
	limit      int
	minScore   float64
	aoType     string
	sector     string
	amount     int64
	domains    []string
	organisme  string
	region     string
}

func newSearchCmd() *cobra.Command {
	var f searchFlags
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Rank documents against a tender query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), 0, func(ctx context.Context, a *app) error {
				if !cmd.Flags().Changed("collection") {
					f.collection = a.cfg.Search.DefaultCollection
				}
				if !cmd.Flags().Changed("min-score") {
					f.minScore = a.cfg.Search.MinScore
				}
				req, err := buildSearchRequest(strings.Join(args, " "), f)
				if err != nil {
					return err
				}

				ctx, usage := domain.NewContextWithUsage(ctx)
				results, err := a.search.Search(ctx, &req)
				if err != nil {
					return err
				}
				if jsonOutput {
					printJSON(cmd.OutOrStdout(), searchOutput(results))
					return nil
				}
				printResults(cmd.OutOrStdout(), results)
				fmt.Fprintf(cmd.OutOrStdout(), "\n%d result(s), %d token(s), %d cache hit(s)\n",
					len(results), usage.TotalTokens, usage.CacheHits)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&f.collection, "collection", request.DefaultCollection, "collection to search")
	cmd.Flags().IntVarP(&f.limit, "limit", "n", request.DefaultLimit, "maximum number of results")
	cmd.Flags().Float64Var(&f.minScore, "min-score", request.DefaultMinScore, "minimum similarity in [0, 1]")
	cmd.Flags().StringVar(&f.aoType, "ao-type", "", "procedure type (MAPA, Ouvert, Restreint, ...)")
	cmd.Flags().StringVar(&f.sector, "sector", "", "buyer sector (État, Territorial, Hospitalier, ...)")
	cmd.Flags().Int64Var(&f.amount, "amount", 0, "estimated amount in euros")
	cmd.Flags().StringSliceVar(&f.domains, "domain", nil, "technical domain, repeatable")
	cmd.Flags().StringVar(&f.organisme, "organisme", "", "buyer name")
	cmd.Flags().StringVar(&f.region, "region", "", "geographic scope")
	return cmd
}

// buildSearchRequest turns command-line flags into a validated request.
// Enum spellings are normalized; unknown values are rejected.
func buildSearchRequest(query string, f searchFlags) (request.Request, error) {
	var pctx *procurement.Context
	if f.aoType != "" || f.sector != "" || f.amount > 0 || len(f.domains) > 0 || f.organisme != "" || f.region != "" {
		pctx = &procurement.Context{Organisme: f.organisme, GeographicScope: f.region}
		if f.aoType != "" {
			p, err := procurement.ParseProcedureType(f.aoType)
			if err != nil {
				return request.Request{}, domain.NewValidationError("ao-type", f.aoType, err.Error())
			}
			pctx.ProcedureType = p
		}
		if f.sector != "" {
			s, err := procurement.ParseSector(f.sector)
			if err != nil {
				return request.Request{}, domain.NewValidationError("sector", f.sector, err.Error())
			}
			pctx.Sector = s
		}
		if f.amount > 0 {
			amount := f.amount
			pctx.EstimatedAmount = &amount
		}
		for _, d := range f.domains {
			td, err := procurement.ParseTechnicalDomain(d)
			if err != nil {
				return request.Request{}, domain.NewValidationError("domain", d, err.Error())
			}
			pctx.TechnicalDomains = append(pctx.TechnicalDomains, td)
		}
	}

	minScore := f.minScore
	return request.New(query, f.collection, pctx, filter.Expression{}, f.limit, &minScore)
}

type searchItem struct {
	ID         string         `json:"id"`
	Collection string         `json:"collection"`
	Similarity float64        `json:"similarity"`
	Score      float64        `json:"score"`
	Confidence string         `json:"confidence"`
	Content    string         `json:"content"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

func searchOutput(results []result.Result) []searchItem {
	out := make([]searchItem, len(results))
	for i := range results {
		r := &results[i]
		out[i] = searchItem{
			ID:         r.ID(),
			Collection: r.Collection(),
			Similarity: r.Similarity(),
			Score:      r.Score(),
			Confidence: r.ConfidenceLevel(),
			Content:    r.Content(),
			Metadata:   r.Metadata(),
		}
	}
	return out
}

func printResults(w io.Writer, results []result.Result) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tID\tSCORE\tSIMILARITY\tCONFIDENCE\tSECTOR\tTYPE\tCONTENT")
	for i := range results {
		r := &results[i]
		fmt.Fprintf(tw, "%d\t%s\t%.3f\t%.3f\t%s\t%s\t%s\t%s\n",
			i+1, r.ID(), r.Score(), r.Similarity(), r.ConfidenceLevel(),
			r.Sector(), r.ProcedureType(), truncate(strings.Join(strings.Fields(r.Content()), " "), 60))
	}
	_ = tw.Flush()
}
