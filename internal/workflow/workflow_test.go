package workflow

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	lines []string
	err   error
}

func (r *recorder) Submit(text string) error {
	if r.err != nil {
		return r.err
	}
	r.lines = append(r.lines, text)
	return nil
}

func TestLoadWorkflow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wf.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: acme
variables:
  company: Acme Corp
steps:
  - command: target add company name="${company}"
  - id: list
    command: target list
`), 0o600))

	wf, err := LoadWorkflow(path)
	require.NoError(t, err)
	assert.Equal(t, "acme", wf.Name)
	require.Len(t, wf.Steps, 2)
	assert.Equal(t, "step_1", wf.Steps[0].ID)
	assert.Equal(t, "list", wf.Steps[1].ID)
}

func TestLoadWorkflowErrors(t *testing.T) {
	_, err := LoadWorkflow(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: empty\n"), 0o600))
	_, err = LoadWorkflow(path)
	assert.ErrorContains(t, err, "no steps")
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "wf.yaml")
	wf, _ := GetPredefinedWorkflow("engagement")
	require.NoError(t, SaveWorkflow(wf, path))

	got, err := LoadWorkflow(path)
	require.NoError(t, err)
	assert.Equal(t, wf.Steps, got.Steps)
}

func TestExecuteSubmitsResolvedCommands(t *testing.T) {
	wf, ok := GetPredefinedWorkflow("engagement")
	require.True(t, ok)
	hub := &recorder{}

	report, err := Execute(hub, wf, map[string]string{"workspace": "acme", "company": "Acme Corp"})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"workspace add acme",
		"workspace use acme",
		`target add company name="Acme Corp"`,
		"target list",
	}, hub.lines)
	assert.Equal(t, hub.lines, report.Submitted)
}

func TestExecuteUsesWorkflowDefaults(t *testing.T) {
	wf, _ := GetPredefinedWorkflow("company-people")
	hub := &recorder{}

	_, err := Execute(hub, wf, map[string]string{"company_id": "7"})
	require.NoError(t, err)
	assert.Equal(t, []string{"module run linkedin.search target_id=7 limit=10"}, hub.lines)
}

func TestExecuteSubmitsNothingWhenPlanFails(t *testing.T) {
	hub := &recorder{}
	wf, _ := GetPredefinedWorkflow("engagement")

	_, err := Execute(hub, wf, map[string]string{"workspace": "acme"})
	assert.ErrorContains(t, err, "company")
	assert.Empty(t, hub.lines)

	bad := &Workflow{Name: "bad", Steps: []Step{{Command: "target list"}, {Command: "spaceship launch"}}}
	_, err = Execute(hub, bad, nil)
	assert.ErrorContains(t, err, "step_2")
	assert.Empty(t, hub.lines)
}

func TestExecuteStopsOnSubmitFailure(t *testing.T) {
	wf, _ := GetPredefinedWorkflow("domain-sweep")
	_, err := Execute(&recorder{err: errors.New("closed")}, wf, map[string]string{"domain_id": "3"})
	assert.ErrorContains(t, err, "closed")
}

func TestListPredefinedWorkflows(t *testing.T) {
	assert.Equal(t, []string{"company-people", "domain-sweep", "engagement", "host-ports", "service-certificate"}, ListPredefinedWorkflows())
	for _, name := range ListPredefinedWorkflows() {
		wf, _ := GetPredefinedWorkflow(name)
		assert.NotEmpty(t, wf.Steps, name)
	}
}
