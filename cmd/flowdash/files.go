package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dukex/flowdash/pkg/form"
	"github.com/dukex/flowdash/pkg/models"
	"github.com/lithammer/shortuuid/v3"
	"gopkg.in/yaml.v3"
)

// workflowFile is a workflow definition on disk. A file carrying a workflow_id
// updates that workflow; one without creates a new workflow.
//
//	workflow_id: wf_0123456789ab
//	name: Nightly report
//	enabled: true
//	trigger:
//	  type: cron
//	  config:
//	    schedule: "0 6 * * *"
//	steps:
//	  - name: fetch
//	    type: http_request
//	    config:
//	      method: GET
//	      url: https://example.com/report
type workflowFile struct {
	ID string `json:"workflow_id,omitempty"`
	form.Data
}

// loadWorkflowFile reads a YAML (or JSON) workflow definition. Steps without a
// step_id are given a fresh one.
func loadWorkflowFile(path string) (*workflowFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	return parseWorkflowFile(raw)
}

func parseWorkflowFile(raw []byte) (*workflowFile, error) {
	var document map[string]any

	err := yaml.Unmarshal(raw, &document)
	if err != nil {
		return nil, fmt.Errorf("failed to parse workflow: %w", err)
	}

	// Trigger and step configs decode through their JSON tagged-union codecs.
	data, err := json.Marshal(document)
	if err != nil {
		return nil, fmt.Errorf("failed to parse workflow: %w", err)
	}

	var file workflowFile

	err = json.Unmarshal(data, &file)
	if err != nil {
		return nil, fmt.Errorf("failed to parse workflow: %w", err)
	}

	for i := range file.Steps {
		if file.Steps[i].ID == "" {
			file.Steps[i].ID = shortuuid.New()
		}
	}

	return &file, nil
}

// marshalWorkflowFile renders w in the format loadWorkflowFile reads.
func marshalWorkflowFile(w *models.Workflow) ([]byte, error) {
	data, err := json.Marshal(workflowFile{ID: w.ID, Data: form.FromWorkflow(w)})
	if err != nil {
		return nil, err
	}

	var document yaml.Node

	err = yaml.Unmarshal(data, &document)
	if err != nil {
		return nil, err
	}

	plain(&document)

	return yaml.Marshal(&document)
}

// plain drops the flow and quoting styles a JSON source leaves on the nodes.
func plain(node *yaml.Node) {
	node.Style = 0

	for _, child := range node.Content {
		plain(child)
	}
}
