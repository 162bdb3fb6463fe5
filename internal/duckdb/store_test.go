package duckdb

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deluair/alphagenome/internal/analyzer"
	"github.com/deluair/alphagenome/internal/track"
)

func openInMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

var created = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func makeResult(chrom string, pos int64, ref, alt []float64) *analyzer.Result {
	refSum := track.Summarize(track.Numeric(track.Values(ref)))
	p := analyzer.AssayPrediction{Reference: refSum}
	if alt != nil {
		p.Alternate = track.Summarize(track.Numeric(track.Values(alt)))
		p.Difference = track.CompareSummaries(p.Reference, p.Alternate)
	}
	return &analyzer.Result{
		Chromosome:  chrom,
		Position:    pos,
		Reference:   "G",
		Alternate:   "T",
		Predictions: map[string]analyzer.AssayPrediction{"rna_seq": p},
		Metadata:    map[string]any{},
		CreatedAt:   created,
	}
}

func TestOpenClose(t *testing.T) {
	s := openInMemory(t)
	assert.NotNil(t, s.DB())
	assert.Empty(t, s.Path())
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "results.duckdb")
	s, err := Open(path)
	require.NoError(t, err)

	_, err = s.WriteResults("run-1", []*analyzer.Result{makeResult("chr1", 10, []float64{1, 2}, []float64{2, 2})})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()
	n, err := reopened.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestWriteAndLookupResults(t *testing.T) {
	s := openInMemory(t)

	r := makeResult("chr17", 43106528, []float64{1, 2, 3}, []float64{2, 3, 5})
	r.Predictions["cage"] = analyzer.AssayPrediction{
		Reference: &track.Summary{Kind: track.KindOpaque, Raw: "x"},
	}

	n, err := s.WriteResults("run-1", []*analyzer.Result{r})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	rows, err := s.LookupVariant("chr17", 43106528, "G", "T")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	cage, rna := rows[0], rows[1]
	assert.Equal(t, "cage", cage.Assay)
	assert.Equal(t, "opaque", cage.RefKind)
	assert.False(t, cage.RefMean.Valid)
	assert.False(t, cage.TotalEffect.Valid)

	assert.Equal(t, "rna_seq", rna.Assay)
	assert.Equal(t, "run-1", rna.RunID)
	assert.Equal(t, "recognized", rna.RefKind)
	assert.Equal(t, int64(3), rna.RefLength.Int64)
	assert.Equal(t, 2.0, rna.RefMean.Float64)
	assert.Equal(t, 3.0, rna.RefMax.Float64)
	assert.Equal(t, 1.0, rna.RefMin.Float64)
	assert.InDelta(t, 10.0/3.0, rna.AltMean.Float64, 1e-12)
	assert.Equal(t, 2.0, rna.MaxAbsDifference.Float64)
	assert.Equal(t, 4.0, rna.TotalEffect.Float64)
	assert.InDelta(t, 0.9819805060619657, rna.Correlation.Float64, 1e-12)
	assert.True(t, created.Equal(rna.CreatedAt))

	rows, err = s.LookupVariant("chr17", 99999, "G", "T")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestWriteResults_NullAlternate(t *testing.T) {
	s := openInMemory(t)

	_, err := s.WriteResults("run-1", []*analyzer.Result{makeResult("chr2", 5, []float64{1, 1}, nil)})
	require.NoError(t, err)

	rows, err := s.LookupVariant("chr2", 5, "G", "T")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].RefMean.Valid)
	assert.False(t, rows[0].AltMean.Valid)
	assert.False(t, rows[0].MeanDifference.Valid)
	assert.False(t, rows[0].Correlation.Valid)
}

func TestWriteResults_Dedup(t *testing.T) {
	s := openInMemory(t)

	r := makeResult("chr1", 10, []float64{1}, []float64{2})
	n, err := s.WriteResults("run-1", []*analyzer.Result{r, r})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.WriteResults("run-1", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestTopEffects(t *testing.T) {
	s := openInMemory(t)

	results := []*analyzer.Result{
		makeResult("chr1", 100, []float64{0, 0}, []float64{1, 1}), // total 2
		makeResult("chr1", 200, []float64{0, 0}, []float64{5, 5}), // total 10
		makeResult("chr2", 300, []float64{0, 0}, []float64{2, 2}), // total 4
		makeResult("chr3", 400, []float64{0, 0}, nil),             // no difference
	}
	_, err := s.WriteResults("run-1", results)
	require.NoError(t, err)

	top, err := s.TopEffects("rna_seq", 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, int64(200), top[0].Pos)
	assert.Equal(t, int64(300), top[1].Pos)

	all, err := s.TopEffects("rna_seq", 10)
	require.NoError(t, err)
	assert.Len(t, all, 3, "rows without a difference are excluded")

	none, err := s.TopEffects("dnase", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRunRowsAndClear(t *testing.T) {
	s := openInMemory(t)

	_, err := s.WriteResults("run-1", []*analyzer.Result{makeResult("chr1", 1, []float64{1}, []float64{1})})
	require.NoError(t, err)
	_, err = s.WriteResults("run-2", []*analyzer.Result{
		makeResult("chr2", 2, []float64{1}, []float64{1}),
		makeResult("chr1", 3, []float64{1}, []float64{1}),
	})
	require.NoError(t, err)

	rows, err := s.RunRows("run-2")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "chr1", rows[0].Chrom)
	assert.Equal(t, "chr2", rows[1].Chrom)

	require.NoError(t, s.ClearResults())
	n, err := s.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestFlatten(t *testing.T) {
	r := makeResult("chr1", 1, []float64{1, 3}, []float64{2, 2})
	r.Predictions = map[string]analyzer.AssayPrediction{
		"dnase":   r.Predictions["rna_seq"],
		"rna_seq": r.Predictions["rna_seq"],
	}
	empty := &analyzer.Result{Chromosome: "chr1", Position: 2, Reference: "A"}

	rows := Flatten("run", []*analyzer.Result{r, empty})
	require.Len(t, rows, 2)
	assert.Equal(t, "rna_seq", rows[0].Assay)
	assert.Equal(t, "dnase", rows[1].Assay)
	assert.Equal(t, 0.0, rows[0].MeanDifference.Float64)
	assert.Equal(t, 0.0, rows[0].Correlation.Float64)
	assert.True(t, rows[0].Correlation.Valid)
}
