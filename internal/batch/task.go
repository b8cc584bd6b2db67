package batch

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/dgnsrekt/bsdash/internal/pricing"
	"github.com/dgnsrekt/bsdash/internal/request"
)

// Scenario is one line of a scenario file: an option plus an optional ID.
type Scenario struct {
	ID string `json:"id,omitempty"`
	request.OptionRequest
}

type Task struct {
	Line     int
	Scenario Scenario
	// decodeErr is set when the line could not be parsed; the task is
	// reported as failed without being evaluated.
	decodeErr error
}

func (t Task) String() string {
	return fmt.Sprintf("line %d (%s)", t.Line, t.Scenario.ID)
}

// TaskResult is one line of the results file.
type TaskResult struct {
	ID     string          `json:"id"`
	Line   int             `json:"line"`
	Params *pricing.Params `json:"params,omitempty"`
	Price  *float64        `json:"price,omitempty"`
	Greeks *pricing.Greeks `json:"greeks,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Success reports whether the scenario was evaluated.
func (r TaskResult) Success() bool {
	return r.Error == ""
}

// ReadTasks parses JSON Lines scenarios. Blank lines are skipped. A line that
// is not valid JSON becomes a task carrying its decode error, so one bad line
// does not stop the batch. Scenarios without an ID get a random one.
func ReadTasks(r io.Reader) ([]Task, error) {
	var tasks []Task
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}

		task := Task{Line: line}
		if err := json.Unmarshal(text, &task.Scenario); err != nil {
			task.decodeErr = fmt.Errorf("decoding scenario: %w", err)
		}
		if task.Scenario.ID == "" {
			task.Scenario.ID = uuid.NewString()
		}
		tasks = append(tasks, task)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading scenarios: %w", err)
	}

	if len(tasks) == 0 {
		return nil, ErrEmptyInput
	}
	return tasks, nil
}
