// Package runconfig writes the SUMO run configuration.
//
// The file follows a fixed template and values are written verbatim, without XML escaping, so that two runs
// with the same inputs produce byte-identical files.
package runconfig

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// ErrNoNetwork is returned when the configuration does not name a network.
var ErrNoNetwork = errors.New("run configuration needs a network file")

// ErrNoRoutes is returned when the configuration does not name any route file.
var ErrNoRoutes = errors.New("run configuration needs at least one route file")

// RunConfig lists the inputs of a simulation.
type RunConfig struct {
	NetFile         string
	RouteFiles      []string
	AdditionalFiles []string
	// RelativeTo rewrites every path relative to this directory when set.
	RelativeTo string
}

// Render returns the content of the run configuration.
func Render(cfg RunConfig) ([]byte, error) {
	if cfg.NetFile == "" {
		return nil, ErrNoNetwork
	}
	if len(cfg.RouteFiles) == 0 {
		return nil, ErrNoRoutes
	}

	net, err := rel(cfg.RelativeTo, cfg.NetFile)
	if err != nil {
		return nil, err
	}
	routes, err := relAll(cfg.RelativeTo, cfg.RouteFiles)
	if err != nil {
		return nil, err
	}
	additional, err := relAll(cfg.RelativeTo, cfg.AdditionalFiles)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	b.WriteString("<configuration>\n")
	b.WriteString("<input>\n")
	b.WriteString(`<net-file value="` + net + `"/>` + "\n")
	b.WriteString(`<route-files value="` + strings.Join(routes, ",") + `"/>` + "\n")
	if len(additional) > 0 {
		b.WriteString(`<additional-files value="` + strings.Join(additional, ",") + `"/>` + "\n")
	}
	b.WriteString("</input>\n")
	b.WriteString("</configuration>\n")

	return []byte(b.String()), nil
}

// Write renders cfg into path, replacing any existing file.
func Write(path string, cfg RunConfig) error {
	content, err := Render(cfg)
	if err != nil {
		return err
	}

	err = os.WriteFile(path, content, 0o644) //nolint:gosec // read by the simulator
	if err != nil {
		return errors.Wrapf(err, "unable to write run configuration %s", path)
	}

	return nil
}

func rel(base, path string) (string, error) {
	if base == "" {
		return path, nil
	}

	r, err := filepath.Rel(base, path)
	if err != nil {
		return "", errors.Wrapf(err, "unable to make %s relative to %s", path, base)
	}

	return r, nil
}

func relAll(base string, paths []string) ([]string, error) {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		r, err := rel(base, p)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}

	return out, nil
}
