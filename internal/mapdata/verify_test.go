package mapdata_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/go-traffic-pipeline/internal/mapdata"
)

const extract = `<?xml version="1.0" encoding="UTF-8"?>
<osm version="0.6" generator="Overpass API">
  <bounds minlat="40.18" minlon="29.05" maxlat="40.20" maxlon="29.07"/>
  <node id="1" lat="40.185" lon="29.055" version="1"/>
  <node id="2" lat="40.186" lon="29.056" version="1"/>
  <way id="10" version="1">
    <nd ref="1"/>
    <nd ref="2"/>
    <tag k="highway" v="residential"/>
  </way>
</osm>
`

func writeFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "map.osm.xml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestVerifyExtract(t *testing.T) {
	t.Parallel()

	sum, err := mapdata.VerifyExtract(context.Background(), writeFile(t, extract))
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Nodes)
	assert.Equal(t, 1, sum.Ways)
	assert.Equal(t, 0, sum.Relations)
}

func TestVerifyExtractEmpty(t *testing.T) {
	t.Parallel()

	path := writeFile(t, `<?xml version="1.0"?><osm version="0.6"><remark>runtime error: Query timed out</remark></osm>`)
	_, err := mapdata.VerifyExtract(context.Background(), path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, mapdata.ErrEmptyExtract))
}

func TestVerifyExtractMissing(t *testing.T) {
	t.Parallel()

	_, err := mapdata.VerifyExtract(context.Background(), filepath.Join(t.TempDir(), "nope.osm.xml"))
	require.Error(t, err)
}
