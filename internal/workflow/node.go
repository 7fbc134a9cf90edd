package workflow

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/workflowkit/engine/pkg/models"
)

// composeInputs implements §4.6 step 2: static inputs, then user inputs,
// then input mappings, each layer able to overwrite the last.
func composeInputs(sess *session, node *models.Node, execCtx models.ExecutionContext) (map[string]interface{}, error) {
	input := make(map[string]interface{})

	for _, si := range node.InputConfig.StaticInputs {
		input[si.Name] = si.Value
	}

	for _, ui := range node.InputConfig.UserInputs {
		key := node.ID + "." + ui.Name
		if v, ok := execCtx.UserInputs[key]; ok {
			input[ui.Name] = v
		} else if ui.DefaultValue != nil {
			input[ui.Name] = ui.DefaultValue
		}
	}

	for _, m := range node.InputConfig.InputMappings {
		value, ok := extractValue(sourceOutput(sess, m.SourceNodeID), m.SourceOutputName)
		if ok {
			v, err := applyTransformation(value, m.Transformation)
			if err != nil {
				return nil, fmt.Errorf("node %s: input mapping %q: %w", node.ID, m.InputName, err)
			}
			input[m.InputName] = v
			continue
		}
		if m.DefaultValue != nil {
			input[m.InputName] = m.DefaultValue
			continue
		}
		if !m.IsOptional {
			return nil, fmt.Errorf("node %s: required input mapping %q has no value, source output %q on %s was absent",
				node.ID, m.InputName, m.SourceOutputName, m.SourceNodeID)
		}
	}

	return input, nil
}

func sourceOutput(sess *session, nodeID string) map[string]interface{} {
	out, _ := sess.getOutput(nodeID)
	return out
}

// extractValue looks up a named field in a node's assembled output.
// Unrecognized names resolve to (nil, false) rather than an error, matching
// §4.6's "value extraction on unrecognized field names resolves to null".
func extractValue(output map[string]interface{}, name string) (interface{}, bool) {
	if output == nil {
		return nil, false
	}
	v, ok := output[name]
	return v, ok
}

// applyTransformation applies a mapping's declared transformation. Only
// "identity" (or empty, meaning identity) is recognized — the validator
// rejects anything else before an execution can be submitted, so an
// unrecognized name reaching here is a structured error, not a silent
// pass-through.
func applyTransformation(value interface{}, transformation string) (interface{}, error) {
	switch transformation {
	case "", "identity":
		return value, nil
	default:
		return nil, fmt.Errorf("unrecognized transformation %q", transformation)
	}
}

// buildRequest implements §4.6 step 3.
func buildRequest(execID string, node *models.Node, project *models.Project, input map[string]interface{}, ceiling int64) *models.ProjectExecutionRequest {
	timeoutMs := node.ExecutionSettings.TimeoutMs
	if ceiling > 0 && (timeoutMs <= 0 || timeoutMs > ceiling) {
		timeoutMs = ceiling
	}

	req := &models.ProjectExecutionRequest{
		ExecutionID: execID,
		NodeID:      node.ID,
		Project:     project,
		Input:       input,
		TimeoutMs:   timeoutMs,
	}
	if len(node.ExecutionSettings.Environment) > 0 {
		req.Config = map[string]interface{}{"environment": node.ExecutionSettings.Environment}
	}
	if node.ExecutionSettings.ResourceLimits != nil {
		req.Limits = node.ExecutionSettings.ResourceLimits
	}
	return req
}

// assembleOutput implements §4.6 step 5: the built-in fields every node
// output carries plus any custom OutputMappings extracted from the
// project's own result.Output.
func assembleOutput(result *models.ProjectExecutionResult, node *models.Node) (map[string]interface{}, error) {
	output := map[string]interface{}{
		"stdout":   result.Stdout,
		"stderr":   result.Stderr,
		"exitCode": result.ExitCode,
		"success":  result.Status == models.ProjectExecutionStatusSucceeded,
		"duration": result.BuildDuration + result.RunDuration,
	}

	var outputFiles []map[string]string
	if raw, ok := result.Output["outputFiles"]; ok {
		if paths, ok := raw.([]string); ok {
			for _, p := range paths {
				outputFiles = append(outputFiles, map[string]string{"fileName": baseName(p), "path": p})
			}
		}
	}
	output["outputFiles"] = outputFiles

	for _, om := range node.OutputConfig.OutputMappings {
		value, ok := extractValueFromProgramOutput(result, om.SourceField)
		if !ok {
			continue
		}
		v, err := applyTransformation(value, om.Transformation)
		if err != nil {
			return nil, fmt.Errorf("node %s: output mapping %q: %w", node.ID, om.OutputName, err)
		}
		output[om.OutputName] = v
	}

	return output, nil
}

// extractValueFromProgramOutput resolves an output mapping's sourceField
// against a project result: the built-in fields first, then the project's
// own declared output map.
func extractValueFromProgramOutput(result *models.ProjectExecutionResult, field string) (interface{}, bool) {
	switch field {
	case "stdout":
		return result.Stdout, true
	case "stderr":
		return result.Stderr, true
	case "exitCode":
		return result.ExitCode, true
	case "error":
		return result.Error, true
	}
	if result.Output == nil {
		return nil, false
	}
	v, ok := result.Output[field]
	return v, ok
}

func baseName(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' || path[i] == '\\' {
			return path[i+1:]
		}
	}
	return path
}

func newID() string { return uuid.NewString() }
