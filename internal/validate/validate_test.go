package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workflowkit/engine/pkg/models"
)

func linearWorkflow() *models.Workflow {
	return &models.Workflow{
		ID:   "wf-1",
		Name: "linear",
		Nodes: []*models.Node{
			{ID: "a", Name: "A", Type: models.NodeTypeProject, ProjectID: "p-a"},
			{ID: "b", Name: "B", Type: models.NodeTypeProject, ProjectID: "p-b"},
			{ID: "c", Name: "C", Type: models.NodeTypeProject, ProjectID: "p-c"},
		},
		Edges: []*models.Edge{
			{ID: "e1", From: "a", To: "b"},
			{ID: "e2", From: "b", To: "c"},
		},
	}
}

func TestValidateWorkflow_LinearChain_NoErrors(t *testing.T) {
	v := New()
	err := v.ValidateWorkflow(linearWorkflow())
	assert.NoError(t, err)
}

func TestValidateWorkflow_DetectsCycle(t *testing.T) {
	wf := linearWorkflow()
	wf.Edges = append(wf.Edges, &models.Edge{ID: "e3", From: "c", To: "a"})

	v := New()
	err := v.ValidateWorkflow(wf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), models.ErrCyclicDependency.Error())
}

func TestValidateWorkflow_InputMappingMustReferenceAncestor(t *testing.T) {
	wf := linearWorkflow()
	// a maps from c, which is a descendant, not an ancestor.
	wf.Nodes[0].InputConfig.InputMappings = []models.InputMapping{
		{InputName: "x", SourceNodeID: "c", SourceOutputName: "stdout"},
	}

	v := New()
	err := v.ValidateWorkflow(wf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not an ancestor")
}

func TestValidateWorkflow_InputMappingMustReferenceKnownOutput(t *testing.T) {
	wf := linearWorkflow()
	wf.Nodes[2].InputConfig.InputMappings = []models.InputMapping{
		{InputName: "x", SourceNodeID: "a", SourceOutputName: "not_declared"},
	}

	v := New()
	err := v.ValidateWorkflow(wf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "undeclared source output")
}

func TestValidateWorkflow_InputMappingAllowsBuiltinOutput(t *testing.T) {
	wf := linearWorkflow()
	wf.Nodes[2].InputConfig.InputMappings = []models.InputMapping{
		{InputName: "x", SourceNodeID: "a", SourceOutputName: "stdout"},
	}

	v := New()
	assert.NoError(t, v.ValidateWorkflow(wf))
}

func TestValidateWorkflow_RejectsNonIdentityTransformation(t *testing.T) {
	wf := linearWorkflow()
	wf.Nodes[2].InputConfig.InputMappings = []models.InputMapping{
		{InputName: "x", SourceNodeID: "a", SourceOutputName: "stdout", Transformation: "expr:1+1"},
	}

	v := New()
	err := v.ValidateWorkflow(wf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unrecognized transformation")
}

func TestValidateWorkflow_FlagsEdgeToDisabledNode(t *testing.T) {
	wf := linearWorkflow()
	wf.Nodes[2].IsDisabled = true

	v := New()
	err := v.ValidateWorkflow(wf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disabled node")
}

func TestValidateExecution_MissingRequiredUserInput(t *testing.T) {
	wf := linearWorkflow()
	wf.Nodes[0].InputConfig.UserInputs = []models.UserInput{{Name: "greeting"}}

	v := New()
	req := &models.ExecutionRequest{WorkflowID: wf.ID}
	err := v.ValidateExecution(wf, req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required user input")
}

func TestValidateExecution_UserInputSuppliedInContext(t *testing.T) {
	wf := linearWorkflow()
	wf.Nodes[0].InputConfig.UserInputs = []models.UserInput{{Name: "greeting"}}

	v := New()
	req := &models.ExecutionRequest{
		WorkflowID: wf.ID,
		Context:    models.ExecutionContext{UserInputs: map[string]interface{}{"a.greeting": "hi"}},
	}
	assert.NoError(t, v.ValidateExecution(wf, req))
}

func TestValidateExecution_UserInputHasDefault(t *testing.T) {
	wf := linearWorkflow()
	wf.Nodes[0].InputConfig.UserInputs = []models.UserInput{{Name: "greeting", DefaultValue: "hi"}}

	v := New()
	req := &models.ExecutionRequest{WorkflowID: wf.ID}
	assert.NoError(t, v.ValidateExecution(wf, req))
}

func TestValidateExecution_NilRequest(t *testing.T) {
	v := New()
	err := v.ValidateExecution(linearWorkflow(), nil)
	assert.Error(t, err)
}

func TestValidateExecution_RequiresWorkflowID(t *testing.T) {
	v := New()
	err := v.ValidateExecution(linearWorkflow(), &models.ExecutionRequest{})
	assert.Error(t, err)
}

func TestValidatePermissions_Creator(t *testing.T) {
	wf := linearWorkflow()
	wf.CreatedBy = "alice"

	v := New()
	assert.NoError(t, v.ValidatePermissions(wf, "alice", nil))
}

func TestValidatePermissions_AllowedUser(t *testing.T) {
	wf := linearWorkflow()
	wf.Permissions.AllowedUsers = []string{"bob"}

	v := New()
	assert.NoError(t, v.ValidatePermissions(wf, "bob", nil))
}

func TestValidatePermissions_AllowedRole(t *testing.T) {
	wf := linearWorkflow()
	wf.Permissions.AllowedRoles = []string{"admin"}

	v := New()
	assert.NoError(t, v.ValidatePermissions(wf, "carol", []string{"admin"}))
}

func TestValidatePermissions_PublicDoesNotGrantExecute(t *testing.T) {
	wf := linearWorkflow()
	wf.Permissions.IsPublic = true

	v := New()
	err := v.ValidatePermissions(wf, "stranger", nil)
	assert.Error(t, err)
}

func TestValidatePermissions_Denied(t *testing.T) {
	wf := linearWorkflow()

	v := New()
	err := v.ValidatePermissions(wf, "mallory", nil)
	assert.Error(t, err)
}

func TestTopologicalOrder_LinearChain(t *testing.T) {
	v := New()
	order, err := v.TopologicalOrder(linearWorkflow())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestDependencyGraph_LinearChain(t *testing.T) {
	v := New()
	graph := v.DependencyGraph(linearWorkflow())
	assert.Empty(t, graph["a"])
	assert.Equal(t, []string{"a"}, graph["b"])
	assert.Equal(t, []string{"b"}, graph["c"])
}

func TestComplexity_LinearChain(t *testing.T) {
	v := New()
	metrics, err := v.Complexity(linearWorkflow())
	require.NoError(t, err)
	assert.Equal(t, 3, metrics.NodeCount)
	assert.Equal(t, 2, metrics.EdgeCount)
	assert.Equal(t, 3, metrics.Depth)
	assert.Equal(t, 1, metrics.ParallelWidth)
	assert.Equal(t, 1.0, metrics.BranchingFactor)
}

func TestWaves_LinearChain(t *testing.T) {
	v := New()
	waves, err := v.Waves(linearWorkflow())
	require.NoError(t, err)
	require.Len(t, waves, 3)
	assert.Equal(t, []string{"a"}, waves[0])
	assert.Equal(t, []string{"b"}, waves[1])
	assert.Equal(t, []string{"c"}, waves[2])
}

func TestComplexity_Diamond(t *testing.T) {
	wf := &models.Workflow{
		ID: "wf-diamond",
		Nodes: []*models.Node{
			{ID: "a", Name: "A", Type: models.NodeTypeProject, ProjectID: "p"},
			{ID: "b", Name: "B", Type: models.NodeTypeProject, ProjectID: "p"},
			{ID: "c", Name: "C", Type: models.NodeTypeProject, ProjectID: "p"},
			{ID: "d", Name: "D", Type: models.NodeTypeProject, ProjectID: "p"},
		},
		Edges: []*models.Edge{
			{ID: "e1", From: "a", To: "b"},
			{ID: "e2", From: "a", To: "c"},
			{ID: "e3", From: "b", To: "d"},
			{ID: "e4", From: "c", To: "d"},
		},
	}

	v := New()
	metrics, err := v.Complexity(wf)
	require.NoError(t, err)
	assert.Equal(t, 3, metrics.Depth)
	assert.Equal(t, 2, metrics.ParallelWidth)
}
