package metrics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderCounts(t *testing.T) {
	r := New()
	r.Processed()
	r.Processed()
	r.Retained()
	r.Excluded("image_not_indexed")
	r.Failed()

	assert.Equal(t, 2.0, testutil.ToFloat64(r.processed))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.retained))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.excluded.WithLabelValues("image_not_indexed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.failed))

	path := filepath.Join(t.TempDir(), "run.prom")
	require.NoError(t, r.WriteTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `catalog_prep_images_excluded_total{reason="image_not_indexed"} 1`)
}
