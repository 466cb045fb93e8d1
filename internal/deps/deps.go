package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

// Requirement defines an external binary filescribe shells out to.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// Severity classifies a status for display: ok, warn for a missing optional
// binary, error for a missing required one.
func (s Status) Severity() string {
	switch {
	case s.Available:
		return "ok"
	case s.Optional:
		return "warn"
	default:
		return "error"
	}
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		resolved, err := exec.LookPath(cmd)
		if err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Command = resolved
		status.Available = true
		results = append(results, status)
	}
	return results
}

// Summary counts available and missing dependencies.
type Summary struct {
	Total           int    `json:"total"`
	Available       int    `json:"available"`
	MissingRequired int    `json:"missing_required"`
	MissingOptional int    `json:"missing_optional"`
	Severity        string `json:"severity"`
	Detail          string `json:"detail"`
}

// Summarize aggregates statuses into a single readiness line.
func Summarize(statuses []Status) Summary {
	if len(statuses) == 0 {
		return Summary{Severity: "info", Detail: "No dependency checks configured"}
	}
	sum := Summary{Total: len(statuses)}
	for _, st := range statuses {
		switch {
		case st.Available:
			sum.Available++
		case st.Optional:
			sum.MissingOptional++
		default:
			sum.MissingRequired++
		}
	}
	sum.Severity = "ok"
	if sum.MissingRequired > 0 {
		sum.Severity = "error"
	} else if sum.MissingOptional > 0 {
		sum.Severity = "warn"
	}
	if sum.MissingRequired+sum.MissingOptional == 0 {
		sum.Detail = fmt.Sprintf("%d/%d available", sum.Available, sum.Total)
	} else {
		sum.Detail = fmt.Sprintf("%d/%d available (missing: %d required, %d optional)",
			sum.Available, sum.Total, sum.MissingRequired, sum.MissingOptional)
	}
	return sum
}
