package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/webtrail-dev/webtrail/pkg/workflow"
)

func TestWorkflowInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "starter.yaml")

	err := workflowInitCmd.RunE(workflowInitCmd, []string{path})
	require.NoError(t, err)

	wf, err := workflow.Load(path)
	require.NoError(t, err)
	require.Equal(t, "my-workflow", wf.Name)
	require.NotEmpty(t, wf.Steps)
	require.Equal(t, workflow.ActionNavigate, wf.Steps[0].ActionType)
}

func TestWorkflowInitRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "starter.yaml")

	require.NoError(t, workflowInitCmd.RunE(workflowInitCmd, []string{path}))
	require.Error(t, workflowInitCmd.RunE(workflowInitCmd, []string{path}))
}

func TestWorkflowCheck(t *testing.T) {
	path := filepath.Join(t.TempDir(), "starter.yaml")
	require.NoError(t, workflowInitCmd.RunE(workflowInitCmd, []string{path}))

	require.NoError(t, workflowCheckCmd.RunE(workflowCheckCmd, []string{path}))
	require.Error(t, workflowCheckCmd.RunE(workflowCheckCmd, []string{filepath.Join(t.TempDir(), "missing.yaml")}))
}
