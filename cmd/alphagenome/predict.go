package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/deluair/alphagenome/internal/analyzer"
	"github.com/deluair/alphagenome/internal/backend"
	"github.com/deluair/alphagenome/internal/input"
	"github.com/deluair/alphagenome/internal/variant"
)

func newPredictCmd(a *app) *cobra.Command {
	var (
		start, end int64
		ontology   []string
		outputs    []string
		meta       []string
	)

	cmd := &cobra.Command{
		Use:   "predict <chrom> <pos> <ref> [alt]",
		Short: "Predict the effect of a single variant",
		Long: `Predict the effect of a single variant and print the result as JSON.

An omitted alternate allele is a deletion of the reference bases. Without
--start/--end the prediction uses a window of interval_size bases centered on
the variant.`,
		Example: `  alphagenome predict chr17 43106528 G T
  alphagenome predict 17 43106528 G T --start 43000000 --end 43200000
  alphagenome predict chr1 1000 A C --ontology UBERON:0002048 --meta sample=S1`,
		Args: withUsage(cobra.RangeArgs(3, 4)),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := predictRequest(args, start, end, ontology, outputs, meta)
			if err != nil {
				return usageError(err)
			}
			if err := a.load(); err != nil {
				return err
			}

			an, err := a.newAnalyzer()
			if err != nil {
				return err
			}
			defer a.saveCache(an)

			r, err := an.Predict(cmd.Context(), req)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(r)
		},
	}

	cmd.Flags().Int64Var(&start, "start", 0, "Context interval start (requires --end)")
	cmd.Flags().Int64Var(&end, "end", 0, "Context interval end, exclusive (requires --start)")
	cmd.Flags().StringSliceVar(&ontology, "ontology", nil, "Ontology terms for the prediction context (repeatable)")
	cmd.Flags().StringSliceVar(&outputs, "output", nil, "Output types to request: RNA_SEQ, CAGE, DNASE, ATAC (repeatable)")
	cmd.Flags().StringArrayVar(&meta, "meta", nil, "Metadata key=value attached to the result (repeatable)")

	return cmd
}

// predictRequest builds an analyzer request from command-line arguments.
func predictRequest(args []string, start, end int64, ontology, outputs, meta []string) (analyzer.Request, error) {
	pos, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return analyzer.Request{}, fmt.Errorf("invalid position %q", args[1])
	}

	v := variant.Variant{
		Chrom: input.NormalizeChrom(args[0]),
		Pos:   pos,
		Ref:   strings.ToUpper(args[2]),
	}
	if len(args) > 3 {
		v.Alt = strings.ToUpper(args[3])
	}
	req := analyzer.Request{Variant: v, OntologyTerms: ontology}

	switch {
	case start != 0 && end != 0:
		req.Interval = &variant.Interval{Chrom: v.Chrom, Start: start, End: end}
	case start != 0 || end != 0:
		return analyzer.Request{}, fmt.Errorf("--start and --end must be given together")
	}

	for _, o := range outputs {
		req.Outputs = append(req.Outputs, backend.OutputType(strings.ToUpper(o)))
	}

	req.Metadata, err = parseMeta(meta)
	if err != nil {
		return analyzer.Request{}, err
	}
	return req, nil
}

// parseMeta turns key=value pairs into a metadata map.
func parseMeta(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	m := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid metadata %q (expected key=value)", p)
		}
		m[k] = v
	}
	return m, nil
}
