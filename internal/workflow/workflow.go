// Package workflow runs scripted sequences of console commands loaded from YAML.
package workflow

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tldr-it-stepankutaj/reconkit/internal/command"
)

// Workflow is a named list of console commands with ${variable} placeholders.
type Workflow struct {
	Name        string            `yaml:"name" json:"name"`
	Description string            `yaml:"description,omitempty" json:"description,omitempty"`
	Author      string            `yaml:"author,omitempty" json:"author,omitempty"`
	Variables   map[string]string `yaml:"variables,omitempty" json:"variables,omitempty"`
	Steps       []Step            `yaml:"steps" json:"steps"`
}

// Step is one console command.
type Step struct {
	ID      string `yaml:"id,omitempty" json:"id,omitempty"`
	Name    string `yaml:"name,omitempty" json:"name,omitempty"`
	Command string `yaml:"command" json:"command"`
}

// Submitter queues console text for the hub.
type Submitter interface {
	Submit(text string) error
}

var placeholder = regexp.MustCompile(`\$\{([A-Za-z0-9_.-]+)\}`)

// LoadWorkflow loads a workflow from a YAML file.
func LoadWorkflow(path string) (*Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow file: %w", err)
	}

	var wf Workflow
	if err := yaml.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("failed to parse workflow: %w", err)
	}
	if len(wf.Steps) == 0 {
		return nil, fmt.Errorf("workflow %q has no steps", wf.Name)
	}

	// Assign IDs to steps if not provided
	for i := range wf.Steps {
		if wf.Steps[i].ID == "" {
			wf.Steps[i].ID = fmt.Sprintf("step_%d", i+1)
		}
	}
	return &wf, nil
}

// SaveWorkflow saves a workflow to a YAML file.
func SaveWorkflow(wf *Workflow, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(wf)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Plan resolves every step against the workflow variables and overrides and checks
// that each resolves to a valid command. Nothing is submitted.
func Plan(wf *Workflow, overrides map[string]string) ([]string, error) {
	vars := make(map[string]string, len(wf.Variables)+len(overrides))
	for k, v := range wf.Variables {
		vars[k] = v
	}
	for k, v := range overrides {
		vars[k] = v
	}

	lines := make([]string, 0, len(wf.Steps))
	for i, step := range wf.Steps {
		id := step.ID
		if id == "" {
			id = fmt.Sprintf("step_%d", i+1)
		}
		line, err := resolve(step.Command, vars)
		if err != nil {
			return nil, fmt.Errorf("step %s: %w", id, err)
		}
		if _, err := command.Parse(line); err != nil {
			return nil, fmt.Errorf("step %s: %w", id, err)
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func resolve(text string, vars map[string]string) (string, error) {
	var missing []string
	out := placeholder.ReplaceAllStringFunc(text, func(m string) string {
		name := placeholder.FindStringSubmatch(m)[1]
		v, ok := vars[name]
		if !ok || v == "" {
			missing = append(missing, name)
			return m
		}
		return v
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("unset variables: %s", strings.Join(missing, ", "))
	}
	return out, nil
}

// ExecutionReport summarises a submitted workflow.
type ExecutionReport struct {
	Workflow  string    `json:"workflow"`
	StartTime time.Time `json:"start_time"`
	Submitted []string  `json:"submitted"`
}

// Execute plans wf and submits its commands in order. A workflow that fails to plan
// submits nothing. Commands are queued, not awaited; results arrive on the console.
func Execute(hub Submitter, wf *Workflow, overrides map[string]string) (*ExecutionReport, error) {
	lines, err := Plan(wf, overrides)
	if err != nil {
		return nil, err
	}
	report := &ExecutionReport{Workflow: wf.Name, StartTime: time.Now()}
	for _, line := range lines {
		if err := hub.Submit(line); err != nil {
			return report, fmt.Errorf("submit %q: %w", line, err)
		}
		report.Submitted = append(report.Submitted, line)
	}
	return report, nil
}

// PredefinedWorkflows contains common workflow templates.
var PredefinedWorkflows = map[string]*Workflow{
	"engagement": {
		Name:        "New Engagement",
		Description: "Create and select a workspace for a new engagement",
		Steps: []Step{
			{ID: "create", Command: "workspace add ${workspace}"},
			{ID: "select", Command: "workspace use ${workspace}"},
			{ID: "company", Command: `target add company name="${company}"`},
			{ID: "show", Command: "target list"},
		},
	},
	"company-people": {
		Name:        "Company People Search",
		Description: "Search for employees of a stored company",
		Variables:   map[string]string{"limit": "10"},
		Steps: []Step{
			{ID: "linkedin", Command: "module run linkedin.search target_id=${company_id} limit=${limit}"},
		},
	},
	"domain-sweep": {
		Name:        "Domain Sweep",
		Description: "Resolve a stored domain into hosts and crawl its web page",
		Steps: []Step{
			{ID: "resolve", Command: "module run dns.resolve target_id=${domain_id}"},
			{ID: "crawl", Command: "module run http.crawl target_id=${domain_id}"},
		},
	},
	"host-ports": {
		Name:        "Host Port Probe",
		Description: "TCP connect probe against a stored host",
		Variables:   map[string]string{"ports": "21,22,25,53,80,110,143,443,445,3306,3389,5432,8080,8443"},
		Steps: []Step{
			{ID: "probe", Command: "module run tcp.connect target_id=${host_id} ports=${ports}"},
		},
	},
	"service-certificate": {
		Name:        "Service Certificate",
		Description: "Collect domain names from the certificate of a stored TLS service",
		Steps: []Step{
			{ID: "certificate", Command: "module run tls.certificate target_id=${service_id}"},
		},
	},
}

// GetPredefinedWorkflow returns a predefined workflow by name.
func GetPredefinedWorkflow(name string) (*Workflow, bool) {
	wf, ok := PredefinedWorkflows[name]
	return wf, ok
}

// ListPredefinedWorkflows returns the predefined workflow names in order.
func ListPredefinedWorkflows() []string {
	names := make([]string, 0, len(PredefinedWorkflows))
	for name := range PredefinedWorkflows {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
