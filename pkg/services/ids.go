package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

func randomHex12() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
}

// NewWorkflowID returns a workflow ID such as wf_1a2b3c4d5e6f.
func NewWorkflowID() string {
	return "wf_" + randomHex12()
}

// NewExecutionID returns an execution ID that sorts by creation time:
// ex_<12 hex digits of unix milliseconds>_<12 random hex digits>.
func NewExecutionID(now time.Time) string {
	return fmt.Sprintf("ex_%012x_%s", now.UnixMilli(), randomHex12())
}
