// Package mapdata checks downloaded map extracts before they are handed to the network converter.
package mapdata

import (
	"context"
	"os"

	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmxml"
	"github.com/pkg/errors"
)

// ErrEmptyExtract is returned when an extract holds no node, way or relation.
var ErrEmptyExtract = errors.New("map extract has no OSM element")

// Summary counts the elements of an extract.
type Summary struct {
	Nodes     int
	Ways      int
	Relations int
}

// Elements returns the number of nodes, ways and relations.
func (s Summary) Elements() int {
	return s.Nodes + s.Ways + s.Relations
}

// VerifyExtract decodes the OSM XML file at path and counts its elements. A file that does not decode, or
// that decodes to nothing, is rejected.
func VerifyExtract(ctx context.Context, path string) (Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return Summary{}, errors.Wrapf(err, "unable to open map extract %s", path)
	}
	defer f.Close()

	var sum Summary
	scanner := osmxml.New(ctx, f)
	defer scanner.Close()

	for scanner.Scan() {
		switch scanner.Object().(type) {
		case *osm.Node:
			sum.Nodes++
		case *osm.Way:
			sum.Ways++
		case *osm.Relation:
			sum.Relations++
		}
	}
	err = scanner.Err()
	if err != nil {
		return sum, errors.Wrapf(err, "unable to decode map extract %s", path)
	}
	if sum.Elements() == 0 {
		return sum, errors.Wrap(ErrEmptyExtract, path)
	}

	return sum, nil
}
