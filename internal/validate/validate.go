// Package validate implements the Workflow Validator (C6): structural and
// semantic checks over a workflow DAG, topological/dependency queries, a
// complexity report, and the execution-time permission precheck. It never
// stops at the first problem found inside a single pass — ValidateWorkflow
// and ValidateExecution aggregate every failure into a models.ValidationErrors
// so a caller can report them all at once.
package validate

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/workflowkit/engine/pkg/models"
)

// builtinOutputFields are the fields every node's assembled output always
// carries, independent of any declared OutputMapping.
var builtinOutputFields = map[string]bool{
	"stdout":      true,
	"stderr":      true,
	"exitCode":    true,
	"success":     true,
	"duration":    true,
	"outputFiles": true,
}

// Validator runs the Workflow Validator's checks. It holds a single
// go-playground/validator instance (safe for concurrent use) for the
// struct-tag pass over inbound DTOs.
type Validator struct {
	structValidator *validator.Validate
}

// New creates a Validator.
func New() *Validator {
	return &Validator{structValidator: validator.New()}
}

// ValidateWorkflow implements §4.5's validateWorkflow(wf): node/edge
// structural checks (models.Workflow.Validate, which reports only the first
// structural failure it finds), cycle detection over the enabled subgraph,
// disabled-node edge warnings (reported in the same list as Field "edges"
// entries whose message says the edge references a disabled node;
// Engine.Execute does not treat them as blocking), and input-mapping
// referential checks.
func (v *Validator) ValidateWorkflow(wf *models.Workflow) error {
	var errs models.ValidationErrors

	if err := wf.Validate(); err != nil {
		if ve, ok := err.(*models.ValidationError); ok {
			errs = append(errs, ve)
		} else {
			errs = append(errs, &models.ValidationError{Field: "workflow", Message: err.Error()})
		}
	}

	nodeByID := make(map[string]*models.Node, len(wf.Nodes))
	for _, n := range wf.Nodes {
		nodeByID[n.ID] = n
	}

	for _, e := range wf.Edges {
		from, to := nodeByID[e.From], nodeByID[e.To]
		if from != nil && to != nil && (from.IsDisabled || to.IsDisabled) {
			errs = append(errs, &models.ValidationError{
				Field:   "edges",
				Message: fmt.Sprintf("edge %s references a disabled node and will not be traversed", e.ID),
			})
		}
	}

	d := buildDAG(wf)
	order, err := topologicalOrder(d)
	if err != nil {
		errs = append(errs, &models.ValidationError{Field: "edges", Message: err.Error()})
	}

	position := make(map[string]int, len(order))
	for i, id := range order {
		position[id] = i
	}

	for _, n := range wf.Nodes {
		if n.IsDisabled {
			continue
		}
		for _, m := range n.InputConfig.InputMappings {
			srcPos, srcKnown := position[m.SourceNodeID]
			if !srcKnown {
				errs = append(errs, &models.ValidationError{
					Field:   "input_mappings",
					Message: fmt.Sprintf("node %s: input mapping %q references unknown or disabled source node %s", n.ID, m.InputName, m.SourceNodeID),
				})
				continue
			}
			if srcPos >= position[n.ID] {
				errs = append(errs, &models.ValidationError{
					Field:   "input_mappings",
					Message: fmt.Sprintf("node %s: input mapping %q source node %s is not an ancestor", n.ID, m.InputName, m.SourceNodeID),
				})
				continue
			}
			if !outputNameExists(nodeByID[m.SourceNodeID], m.SourceOutputName) {
				errs = append(errs, &models.ValidationError{
					Field:   "input_mappings",
					Message: fmt.Sprintf("node %s: input mapping %q references undeclared source output %q on node %s", n.ID, m.InputName, m.SourceOutputName, m.SourceNodeID),
				})
			}
			if m.Transformation != "" && m.Transformation != "identity" {
				errs = append(errs, &models.ValidationError{
					Field:   "input_mappings",
					Message: fmt.Sprintf("node %s: input mapping %q uses unrecognized transformation %q", n.ID, m.InputName, m.Transformation),
				})
			}
		}
		for _, om := range n.OutputConfig.OutputMappings {
			if om.Transformation != "" && om.Transformation != "identity" {
				errs = append(errs, &models.ValidationError{
					Field:   "output_mappings",
					Message: fmt.Sprintf("node %s: output mapping %q uses unrecognized transformation %q", n.ID, om.OutputName, om.Transformation),
				})
			}
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func outputNameExists(source *models.Node, name string) bool {
	if builtinOutputFields[name] {
		return true
	}
	if source == nil {
		return false
	}
	for _, om := range source.OutputConfig.OutputMappings {
		if om.OutputName == name {
			return true
		}
	}
	return false
}

// ValidateExecution implements §4.5's validateExecution(wf, ctx): runs the
// struct-tag pass over the inbound request, then checks that every node
// UserInput with no default is satisfiable — either by a supplied user
// input or by an input mapping of the same name. Input mappings themselves
// are not checked here.
func (v *Validator) ValidateExecution(wf *models.Workflow, req *models.ExecutionRequest) error {
	var errs models.ValidationErrors

	if req == nil {
		return &models.ValidationError{Field: "request", Message: "execution request is required"}
	}

	if err := v.structValidator.Struct(req); err != nil {
		errs = append(errs, &models.ValidationError{Field: "request", Message: err.Error()})
	}

	for _, n := range wf.Nodes {
		if n.IsDisabled {
			continue
		}
		for _, ui := range n.InputConfig.UserInputs {
			if ui.DefaultValue != nil {
				continue
			}
			key := n.ID + "." + ui.Name
			if req.Context.UserInputs == nil || req.Context.UserInputs[key] == nil {
				hasMapping := false
				for _, m := range n.InputConfig.InputMappings {
					if m.InputName == ui.Name {
						hasMapping = true
						break
					}
				}
				if !hasMapping {
					errs = append(errs, &models.ValidationError{
						Field:   "context.user_inputs",
						Message: fmt.Sprintf("node %s: required user input %q has no value, default, or mapping", n.ID, ui.Name),
					})
				}
			}
		}
		// Required (non-optional, no default) input mappings are not checked
		// here: whether a mapping is satisfiable depends on its source
		// node's runtime outcome, which the execution engine's
		// dependency-satisfaction rule (§4.6) checks at dispatch time.
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ValidatePermissions implements §4.5's validatePermissions(wf, userId):
// the user must be the workflow's creator, listed in AllowedUsers, or carry
// one of AllowedRoles — a public workflow grants read access only, never
// execute.
func (v *Validator) ValidatePermissions(wf *models.Workflow, userID string, userRoles []string) error {
	if userID != "" && wf.CreatedBy == userID {
		return nil
	}
	for _, u := range wf.Permissions.AllowedUsers {
		if u == userID {
			return nil
		}
	}
	for _, role := range userRoles {
		for _, allowed := range wf.Permissions.AllowedRoles {
			if role == allowed {
				return nil
			}
		}
	}
	return &models.ValidationError{
		Field:   "permissions",
		Message: fmt.Sprintf("user %s may not execute workflow %s", userID, wf.ID),
	}
}

// TopologicalOrder implements §4.5's topologicalOrder(wf) query.
func (v *Validator) TopologicalOrder(wf *models.Workflow) ([]string, error) {
	return topologicalOrder(buildDAG(wf))
}

// Waves returns the workflow's enabled subgraph partitioned into maximal
// topological waves — every node in a wave has all its predecessors in an
// earlier wave. This is the shape the Workflow Execution Engine (C7) drives
// execution over, per §4.6's recommended wave formulation.
func (v *Validator) Waves(wf *models.Workflow) ([][]string, error) {
	return topologicalWaves(buildDAG(wf))
}

// DependencyGraph implements §4.5's dependencyGraph(wf) query: for each
// enabled node, the list of its enabled predecessor node IDs.
func (v *Validator) DependencyGraph(wf *models.Workflow) map[string][]string {
	d := buildDAG(wf)
	graph := make(map[string][]string, len(d.nodes))
	for _, id := range d.order {
		parents := d.parents[id]
		if parents == nil {
			parents = []string{}
		}
		graph[id] = parents
	}
	return graph
}

// ComplexityMetrics is §4.5's complexity(wf) result shape.
type ComplexityMetrics struct {
	NodeCount       int     `json:"node_count"`
	EdgeCount       int     `json:"edge_count"`
	Depth           int     `json:"depth"`
	ParallelWidth   int     `json:"parallel_width"`
	BranchingFactor float64 `json:"branching_factor"`
}

// Complexity implements §4.5's complexity(wf) query over the enabled
// subgraph: depth is the number of topological waves, parallelWidth is the
// largest wave size, branchingFactor is the average out-degree of nodes that
// have at least one child.
func (v *Validator) Complexity(wf *models.Workflow) (ComplexityMetrics, error) {
	d := buildDAG(wf)
	waves, err := topologicalWaves(d)
	if err != nil {
		return ComplexityMetrics{}, err
	}

	metrics := ComplexityMetrics{
		NodeCount: len(d.nodes),
		Depth:     len(waves),
	}
	for _, wave := range waves {
		if len(wave) > metrics.ParallelWidth {
			metrics.ParallelWidth = len(wave)
		}
	}

	branchingNodes := 0
	totalOutDegree := 0
	for id := range d.nodes {
		edgeCount := len(d.children[id])
		metrics.EdgeCount += edgeCount
		if edgeCount > 0 {
			branchingNodes++
			totalOutDegree += edgeCount
		}
	}
	if branchingNodes > 0 {
		metrics.BranchingFactor = float64(totalOutDegree) / float64(branchingNodes)
	}

	return metrics, nil
}
