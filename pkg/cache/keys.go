// Package cache keeps fetched API resources keyed by kind and ID, with explicit
// invalidation after every successful mutation.
package cache

import (
	"strconv"
	"strings"

	"github.com/dukex/flowdash/pkg/models"
)

// Kind is a resource kind.
type Kind string

const (
	KindWorkflows  Kind = "workflows"
	KindWorkflow   Kind = "workflow"
	KindExecutions Kind = "executions"
	KindExecution  Kind = "execution"
	KindSecrets    Kind = "secrets"
)

// Key identifies a cache entry. Invalidating a key drops every entry with the
// same Kind and ID, whatever its Page.
type Key struct {
	Kind Kind
	ID   string
	Page string
}

func (k Key) String() string {
	parts := []string{string(k.Kind)}
	if k.ID != "" {
		parts = append(parts, k.ID)
	}

	if k.Page != "" {
		parts = append(parts, k.Page)
	}

	return strings.Join(parts, "/")
}

func (k Key) group() Key {
	return Key{Kind: k.Kind, ID: k.ID}
}

// WorkflowsKey is the list of all workflows.
func WorkflowsKey() Key {
	return Key{Kind: KindWorkflows}
}

// WorkflowKey is one workflow.
func WorkflowKey(id string) Key {
	return Key{Kind: KindWorkflow, ID: id}
}

// ExecutionsKey covers every cached page of executions of a workflow.
func ExecutionsKey(workflowID string) Key {
	return Key{Kind: KindExecutions, ID: workflowID}
}

func executionsPageKey(workflowID string, opts models.ExecutionListOptions) Key {
	return Key{
		Kind: KindExecutions,
		ID:   workflowID,
		Page: strconv.Itoa(opts.EffectiveLimit()) + ":" + opts.LastKey,
	}
}

// ExecutionKey is one execution. ExecutionKey(workflowID, "") covers every
// cached execution of the workflow.
func ExecutionKey(workflowID, executionID string) Key {
	return Key{Kind: KindExecution, ID: workflowID, Page: executionID}
}

// SecretsKey is the list of secrets.
func SecretsKey() Key {
	return Key{Kind: KindSecrets}
}
