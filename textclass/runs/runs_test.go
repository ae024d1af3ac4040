package runs

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	ledger, err := Open(path)
	require.NoError(t, err)
	defer ledger.Close()

	run := &Run{
		DatasetPath: "/data/corpus.tsv",
		ModelID:     "some-org/some-encoder",
		Pooling:     "mean",
		LabelValues: []string{"a", "b", "c"},
		Metrics:     map[string]float64{"subset_accuracy": 0.75},
		ArtifactDir: "/tmp/artifact",
	}
	require.NoError(t, ledger.Record(run))
	assert.NotEmpty(t, run.ID)

	listed, err := ledger.List()
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, run.ID, listed[0].ID)
	assert.Equal(t, "/data/corpus.tsv", listed[0].DatasetPath)
	assert.Equal(t, []string{"a", "b", "c"}, listed[0].LabelValues)
	assert.Equal(t, 0.75, listed[0].Metrics["subset_accuracy"])
}

func TestLedgerMultipleRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	ledger, err := Open(path)
	require.NoError(t, err)
	defer ledger.Close()

	for i := 0; i < 3; i++ {
		require.NoError(t, ledger.Record(&Run{
			DatasetPath: "/data/corpus.tsv",
			ModelID:     "m",
			Pooling:     "first",
			LabelValues: []string{"x"},
			Metrics:     map[string]float64{},
		}))
	}

	listed, err := ledger.List()
	require.NoError(t, err)
	assert.Len(t, listed, 3)
}

func TestLedgerReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")

	ledger, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, ledger.Record(&Run{ModelID: "m", LabelValues: []string{"a"}, Metrics: map[string]float64{}}))
	require.NoError(t, ledger.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()
	listed, err := reopened.List()
	require.NoError(t, err)
	assert.Len(t, listed, 1)
}
