package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Workflow represents a complete workflow definition: a DAG of nodes, each
// of which references a stored project to build and run, connected by
// dependency-only edges. Data routing between nodes is expressed by each
// node's InputConfiguration, never by the edge.
type Workflow struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Version     int                    `json:"version"`
	Status      WorkflowStatus         `json:"status"`
	Tags        []string               `json:"tags,omitempty"`
	Nodes       []*Node                `json:"nodes"`
	Edges       []*Edge                `json:"edges"`
	Settings    WorkflowSettings       `json:"settings"`
	Permissions WorkflowPermissions    `json:"permissions,omitempty"`
	Variables   map[string]interface{} `json:"variables,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	CreatedBy   string                 `json:"created_by,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

// WorkflowPermissions governs who may submit an execution of this workflow.
// IsPublic grants read access only — it never grants execute on its own,
// per the validator's permission precheck rule.
type WorkflowPermissions struct {
	AllowedUsers []string `json:"allowed_users,omitempty"`
	AllowedRoles []string `json:"allowed_roles,omitempty"`
	IsPublic     bool     `json:"is_public,omitempty"`
}

// WorkflowStatus represents the lifecycle status of a workflow definition.
type WorkflowStatus string

const (
	WorkflowStatusDraft    WorkflowStatus = "draft"
	WorkflowStatusActive   WorkflowStatus = "active"
	WorkflowStatusInactive WorkflowStatus = "inactive"
	WorkflowStatusArchived WorkflowStatus = "archived"
)

// WorkflowSettings holds workflow-scoped execution limits that bound the
// concurrency model described by the execution engine (C7).
type WorkflowSettings struct {
	MaxConcurrentNodes int           `json:"max_concurrent_nodes,omitempty"`
	DefaultNodeTimeout  time.Duration `json:"default_node_timeout,omitempty"`
	ContinueOnError     bool          `json:"continue_on_error,omitempty"`
}

// Node represents a single node in the workflow DAG: a reference to a
// stored project, its input/output data-routing configuration, and its
// execution settings. The node type set is closed — every node
// materializes and runs a project through the Project Execution Engine;
// there is no user-extensible node-type plugin surface.
type Node struct {
	ID                string                 `json:"id"`
	Name              string                 `json:"name"`
	Type              NodeType               `json:"type"`
	Description       string                 `json:"description,omitempty"`
	ProjectID         string                 `json:"project_id"`
	ProjectVersionID  string                 `json:"project_version_id,omitempty"`
	IsDisabled        bool                   `json:"is_disabled,omitempty"`
	Config            map[string]interface{} `json:"config"`
	InputConfig       InputConfiguration     `json:"input_configuration,omitempty"`
	OutputConfig      OutputConfiguration    `json:"output_configuration,omitempty"`
	ExecutionSettings NodeExecutionSettings  `json:"execution_settings,omitempty"`
	Position          *Position              `json:"position,omitempty"`
	Metadata          map[string]interface{} `json:"metadata,omitempty"`
}

// NodeType is currently a singleton set (every node runs a project); kept
// as a named type so a future node kind has somewhere to register without
// changing the Node shape.
type NodeType string

const (
	NodeTypeProject NodeType = "project"
)

// InputConfiguration composes a node's input parameters from three
// layers, later layers overriding earlier ones: static inputs, then
// user-supplied inputs (falling back to declared defaults), then upstream
// input mappings.
type InputConfiguration struct {
	StaticInputs  []StaticInput  `json:"static_inputs,omitempty"`
	UserInputs    []UserInput    `json:"user_inputs,omitempty"`
	InputMappings []InputMapping `json:"input_mappings,omitempty"`
}

// StaticInput is a fixed name/value pair always present in a node's
// composed input unless overridden by a user input or mapping.
type StaticInput struct {
	Name  string      `json:"name"`
	Value interface{} `json:"value"`
}

// UserInput declares a named input the caller may supply at submission
// time via `executionContext.userInputs["{nodeId}.{name}"]`; DefaultValue
// is used when the caller omits it.
type UserInput struct {
	Name         string      `json:"name"`
	DefaultValue interface{} `json:"default_value,omitempty"`
}

// InputMapping routes a named output field of an ancestor node into this
// node's named input. Transformation is a reference into the engine's
// closed transformation set (identity is the only member currently
// defined); an unrecognized name is a structured error at execution time.
type InputMapping struct {
	InputName        string      `json:"input_name"`
	SourceNodeID      string      `json:"source_node_id"`
	SourceOutputName string      `json:"source_output_name"`
	Transformation   string      `json:"transformation,omitempty"`
	IsOptional       bool        `json:"is_optional,omitempty"`
	DefaultValue     interface{} `json:"default_value,omitempty"`
}

// OutputConfiguration declares additional named fields to extract from a
// node's program result, beyond the built-in output fields (stdout,
// stderr, exitCode, success, duration, outputFiles).
type OutputConfiguration struct {
	OutputMappings []OutputMapping `json:"output_mappings,omitempty"`
}

// OutputMapping names a custom output field and the program-result field
// it is extracted from, with an optional transformation.
type OutputMapping struct {
	OutputName     string `json:"output_name"`
	SourceField    string `json:"source_field"`
	Transformation string `json:"transformation,omitempty"`
}

// NodeExecutionSettings configures per-node overrides for timeout,
// environment, retry, and best-effort resource limits applied to the
// node's project execution.
type NodeExecutionSettings struct {
	TimeoutMs      int64             `json:"timeout_ms,omitempty" validate:"omitempty,min=0"`
	Environment    map[string]string `json:"environment,omitempty"`
	Retry          *RetryConfig      `json:"retry,omitempty" validate:"omitempty"`
	ResourceLimits *ResourceLimits   `json:"resource_limits,omitempty"`
	Priority       int               `json:"priority,omitempty"`
}

// RetryConfig is the persisted shape of a node's retry policy.
type RetryConfig struct {
	MaxAttempts     int    `json:"max_attempts" validate:"min=0"`
	InitialDelayMs  int64  `json:"initial_delay_ms" validate:"min=0"`
	MaxDelayMs      int64  `json:"max_delay_ms" validate:"min=0"`
	BackoffStrategy string `json:"backoff_strategy" validate:"omitempty,oneof=constant linear exponential"`
}

// ResourceLimits are advisory, best-effort ceilings — never a preemptive
// scheduler guarantee. On Linux, MaxMemoryMB is applied through a
// `ulimit -v` shell wrapper around the child command; MaxCPUPercent and
// MaxDiskMB are not applied.
type ResourceLimits struct {
	MaxCPUPercent int   `json:"max_cpu_percent,omitempty"`
	MaxMemoryMB   int64 `json:"max_memory_mb,omitempty"`
	MaxDiskMB     int64 `json:"max_disk_mb,omitempty"`
}

// Position represents the visual position of a node in an editor surface.
// Carried through unchanged even though this engine has no UI of its own.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Edge represents a directed dependency between two nodes in the DAG.
// Edges carry dependency only — data routing between nodes is expressed
// by the target node's InputMappings, never by the edge itself.
type Edge struct {
	ID         string                 `json:"id"`
	From       string                 `json:"from"`
	To         string                 `json:"to"`
	IsDisabled bool                   `json:"is_disabled,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	UpdatedAt  time.Time              `json:"updated_at"`
}

// Validate validates the workflow's structural invariants. Cycle detection
// and dependency-graph-level checks live in internal/validate (C6); this
// method covers the per-entity shape checks that must hold before a DAG
// walk is even attempted.
func (w *Workflow) Validate() error {
	if w.Name == "" {
		return &ValidationError{Field: "name", Message: "name is required"}
	}

	if len(w.Nodes) == 0 {
		return &ValidationError{Field: "nodes", Message: "at least one node is required"}
	}

	nodeIDs := make(map[string]bool)
	for _, node := range w.Nodes {
		if err := node.Validate(); err != nil {
			return err
		}
		if nodeIDs[node.ID] {
			return &ValidationError{Field: "nodes", Message: fmt.Sprintf("duplicate node ID: %s", node.ID)}
		}
		nodeIDs[node.ID] = true
	}

	for _, edge := range w.Edges {
		if err := edge.Validate(); err != nil {
			return err
		}
		if !nodeIDs[edge.From] {
			return &ValidationError{Field: "edges", Message: fmt.Sprintf("edge references non-existent source node: %s", edge.From)}
		}
		if !nodeIDs[edge.To] {
			return &ValidationError{Field: "edges", Message: fmt.Sprintf("edge references non-existent target node: %s", edge.To)}
		}
	}

	return nil
}

// Validate validates the node structure.
func (n *Node) Validate() error {
	if n.ID == "" {
		return &ValidationError{Field: "id", Message: "node ID is required"}
	}
	if n.Name == "" {
		return &ValidationError{Field: "name", Message: "node name is required"}
	}
	if n.Type != NodeTypeProject {
		return &ValidationError{Field: "type", Message: fmt.Sprintf("unknown node type: %s", n.Type)}
	}
	if n.ProjectID == "" {
		return &ValidationError{Field: "project_id", Message: "node requires a project ID"}
	}
	for _, mapping := range n.InputConfig.InputMappings {
		if mapping.InputName == "" {
			return &ValidationError{Field: "input_mappings", Message: "input mapping requires an input name"}
		}
		if mapping.SourceNodeID == "" {
			return &ValidationError{Field: "input_mappings", Message: "input mapping requires a source node ID"}
		}
	}
	return nil
}

// Validate validates the edge structure.
func (e *Edge) Validate() error {
	if e.ID == "" {
		return &ValidationError{Field: "id", Message: "edge ID is required"}
	}
	if e.From == "" {
		return &ValidationError{Field: "from", Message: "edge source is required"}
	}
	if e.To == "" {
		return &ValidationError{Field: "to", Message: "edge target is required"}
	}
	if e.From == e.To {
		return &ValidationError{Field: "edge", Message: "self-loop edges are not allowed"}
	}
	return nil
}

// GetNode returns a node by ID.
func (w *Workflow) GetNode(nodeID string) (*Node, error) {
	for _, node := range w.Nodes {
		if node.ID == nodeID {
			return node, nil
		}
	}
	return nil, ErrNodeNotFound
}

// GetEdge returns an edge by ID.
func (w *Workflow) GetEdge(edgeID string) (*Edge, error) {
	for _, edge := range w.Edges {
		if edge.ID == edgeID {
			return edge, nil
		}
	}
	return nil, ErrEdgeNotFound
}

// AddNode adds a node to the workflow.
func (w *Workflow) AddNode(node *Node) error {
	if err := node.Validate(); err != nil {
		return err
	}
	for _, n := range w.Nodes {
		if n.ID == node.ID {
			return &ValidationError{Field: "id", Message: "node ID already exists"}
		}
	}
	w.Nodes = append(w.Nodes, node)
	w.UpdatedAt = time.Now()
	return nil
}

// AddEdge adds an edge to the workflow.
func (w *Workflow) AddEdge(edge *Edge) error {
	if err := edge.Validate(); err != nil {
		return err
	}
	if _, err := w.GetNode(edge.From); err != nil {
		return &ValidationError{Field: "from", Message: "source node does not exist"}
	}
	if _, err := w.GetNode(edge.To); err != nil {
		return &ValidationError{Field: "to", Message: "target node does not exist"}
	}
	for _, e := range w.Edges {
		if e.ID == edge.ID {
			return &ValidationError{Field: "id", Message: "edge ID already exists"}
		}
	}
	w.Edges = append(w.Edges, edge)
	w.UpdatedAt = time.Now()
	return nil
}

// RemoveNode removes a node from the workflow and its associated edges.
func (w *Workflow) RemoveNode(nodeID string) error {
	found := false
	for i, node := range w.Nodes {
		if node.ID == nodeID {
			w.Nodes = append(w.Nodes[:i], w.Nodes[i+1:]...)
			found = true
			break
		}
	}
	if !found {
		return ErrNodeNotFound
	}

	var edges []*Edge
	for _, edge := range w.Edges {
		if edge.From != nodeID && edge.To != nodeID {
			edges = append(edges, edge)
		}
	}
	w.Edges = edges
	w.UpdatedAt = time.Now()
	return nil
}

// RemoveEdge removes an edge from the workflow.
func (w *Workflow) RemoveEdge(edgeID string) error {
	for i, edge := range w.Edges {
		if edge.ID == edgeID {
			w.Edges = append(w.Edges[:i], w.Edges[i+1:]...)
			w.UpdatedAt = time.Now()
			return nil
		}
	}
	return ErrEdgeNotFound
}

// Clone creates a deep copy of the workflow via JSON round-trip.
func (w *Workflow) Clone() (*Workflow, error) {
	data, err := json.Marshal(w)
	if err != nil {
		return nil, err
	}
	var clone Workflow
	if err := json.Unmarshal(data, &clone); err != nil {
		return nil, err
	}
	return &clone, nil
}
