// Package variant composes the stage primitives into the pipeline of each variant.
package variant

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/dominikbraun/graph"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/askiada/go-traffic-pipeline/internal/stage"
	"github.com/askiada/go-traffic-pipeline/internal/sumo"
	"github.com/askiada/go-traffic-pipeline/pkg/pipeline/drawer"
)

// Plan is the ordered list of stages of a variant. Region stages run once per region, class stages once per
// vehicle class of the region.
type Plan struct {
	Name         string
	RegionStages []*stage.Stage
	ClassStages  []*stage.Stage
	deps         graph.Graph[string, string]
}

// Stages returns every stage in execution order.
func (p *Plan) Stages() []*stage.Stage {
	return append(append([]*stage.Stage{}, p.RegionStages...), p.ClassStages...)
}

// Tools returns the external tools needed by the plan, without duplicates.
func (p *Plan) Tools() []sumo.Tool {
	tools := lo.FlatMap(p.Stages(), func(st *stage.Stage, _ int) []sumo.Tool { return st.Tools })

	return lo.UniqBy(tools, func(t sumo.Tool) string { return t.String() })
}

// Downstream returns the stages that depend, directly or not, on the outputs of the named stage, in
// execution order.
func (p *Plan) Downstream(name string) []string {
	if _, err := p.deps.Vertex(name); err != nil {
		return nil
	}

	reached := map[string]bool{}
	// BFS visits the start vertex too
	_ = graph.BFS(p.deps, name, func(v string) bool {
		if v != name {
			reached[v] = true
		}

		return false
	})

	var out []string
	for _, st := range p.Stages() {
		if reached[st.Name] {
			out = append(out, st.Name)
		}
	}

	return out
}

// WriteDOT renders the dependency graph of the plan. Edges are labelled with the artifacts they carry.
func (p *Plan) WriteDOT(w io.Writer) error {
	err := drawer.WriteDOT(p.deps, w, drawer.GraphAttribute("label", p.Name))
	if err != nil {
		return errors.Wrapf(err, "unable to draw plan %s", p.Name)
	}

	return nil
}

// WiringError reports a stage input that no earlier stage produces.
type WiringError struct {
	Stage    string
	Artifact stage.Artifact
}

func (e *WiringError) Error() string {
	return fmt.Sprintf("stage %s needs %s but no earlier stage produces it", e.Stage, e.Artifact)
}

// link validates the artifact wiring of the plan and builds its dependency graph: one vertex per stage and
// one edge from the last producer of an artifact to each of its consumers.
func (p *Plan) link() error {
	deps := graph.New(graph.StringHash, graph.Directed(), graph.PreventCycles())
	producers := map[stage.Artifact]string{}
	edges := map[[2]string][]string{}

	check := func(st *stage.Stage, scope stage.Scope) error {
		if st.Scope != scope {
			return errors.Errorf("stage %s runs per %s and cannot be listed with the %s stages", st.Name, st.Scope, scope)
		}

		attrs := []func(*graph.VertexProperties){graph.VertexAttribute("shape", "box")}
		if st.Optional {
			attrs = append(attrs, graph.VertexAttribute("style", "dashed"))
		}
		err := deps.AddVertex(st.Name, attrs...)
		if errors.Is(err, graph.ErrVertexAlreadyExists) {
			return errors.Errorf("stage %s is listed twice", st.Name)
		}
		if err != nil {
			return errors.Wrapf(err, "unable to add stage %s", st.Name)
		}

		for _, in := range st.Inputs {
			producer, ok := producers[in.Artifact]
			if !ok {
				if in.Optional {
					continue
				}

				return &WiringError{Stage: st.Name, Artifact: in.Artifact}
			}
			key := [2]string{producer, st.Name}
			edges[key] = append(edges[key], string(in.Artifact))
		}
		for _, out := range st.Outputs {
			producers[out.Artifact] = st.Name
		}

		return nil
	}

	for _, st := range p.RegionStages {
		if err := check(st, stage.RegionScope); err != nil {
			return err
		}
	}
	for _, st := range p.ClassStages {
		if err := check(st, stage.ClassScope); err != nil {
			return err
		}
	}

	keys := lo.Keys(edges)
	sort.Slice(keys, func(i, j int) bool {
		return keys[i][0]+"\x00"+keys[i][1] < keys[j][0]+"\x00"+keys[j][1]
	})
	for _, key := range keys {
		err := deps.AddEdge(key[0], key[1], graph.EdgeAttribute("label", strings.Join(edges[key], ",")))
		if err != nil {
			return errors.Wrapf(err, "unable to link %s to %s", key[0], key[1])
		}
	}

	p.deps = deps

	return nil
}
