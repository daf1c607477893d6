// Package workflow defines browser-interaction workflows: ordered sequences
// of actions an automated agent performs against a page. Workflows are built
// programmatically through Builder or loaded from YAML files.
package workflow

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Action types a workflow step can carry.
const (
	ActionNavigate        = "navigate"
	ActionClick           = "click"
	ActionType            = "type"
	ActionWaitForSelector = "wait_for_selector"
	ActionWaitForTime     = "wait_for_time"
	ActionExtractText     = "extract_text"
	ActionScroll          = "scroll"
	ActionAssertElement   = "assert_element"
	ActionAssertText      = "assert_text"
)

// Common errors for workflow construction.
var (
	// ErrEmptyWorkflow is returned when building a workflow with no steps.
	ErrEmptyWorkflow = errors.New("workflow has no steps")
	// ErrInvalidStep is returned when a step is missing a required field.
	ErrInvalidStep = errors.New("invalid workflow step")
)

// Step is one action within a workflow. Which fields are required depends on
// ActionType; Validate enforces the combinations.
type Step struct {
	ActionType string `yaml:"action_type" json:"actionType"`
	URL        string `yaml:"url,omitempty" json:"url,omitempty"`
	Selector   string `yaml:"selector,omitempty" json:"selector,omitempty"`
	Text       string `yaml:"text,omitempty" json:"text,omitempty"`
	// DurationMS is the wait length for wait_for_time steps.
	DurationMS int `yaml:"duration_ms,omitempty" json:"durationMs,omitempty"`
	// DeltaY is the vertical scroll distance in pixels for scroll steps.
	DeltaY int `yaml:"delta_y,omitempty" json:"deltaY,omitempty"`
}

// Validate checks that the step carries the fields its action type requires.
func (s Step) Validate() error {
	switch s.ActionType {
	case ActionNavigate:
		if s.URL == "" {
			return fmt.Errorf("%w: navigate requires a url", ErrInvalidStep)
		}
	case ActionClick, ActionWaitForSelector, ActionExtractText, ActionAssertElement:
		if s.Selector == "" {
			return fmt.Errorf("%w: %s requires a selector", ErrInvalidStep, s.ActionType)
		}
	case ActionType:
		if s.Selector == "" {
			return fmt.Errorf("%w: type requires a selector", ErrInvalidStep)
		}
	case ActionAssertText:
		if s.Selector == "" || s.Text == "" {
			return fmt.Errorf("%w: assert_text requires a selector and text", ErrInvalidStep)
		}
	case ActionWaitForTime:
		if s.DurationMS <= 0 {
			return fmt.Errorf("%w: wait_for_time requires a positive duration", ErrInvalidStep)
		}
	case ActionScroll:
		if s.DeltaY == 0 {
			return fmt.Errorf("%w: scroll requires a non-zero delta", ErrInvalidStep)
		}
	default:
		return fmt.Errorf("%w: unknown action type %q", ErrInvalidStep, s.ActionType)
	}
	return nil
}

// Workflow is a named, ordered sequence of steps.
type Workflow struct {
	Name  string `yaml:"name" json:"name"`
	Steps []Step `yaml:"steps" json:"steps"`
}

// Validate checks the workflow name and every step.
func (w *Workflow) Validate() error {
	if w.Name == "" {
		return fmt.Errorf("%w: workflow name is required", ErrInvalidStep)
	}
	if len(w.Steps) == 0 {
		return ErrEmptyWorkflow
	}
	for i, step := range w.Steps {
		if err := step.Validate(); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
	}
	return nil
}

// Load reads and validates a workflow from a YAML file.
func Load(path string) (*Workflow, error) {
	data, err := os.ReadFile(path) // #nosec G304 - caller-chosen workflow file
	if err != nil {
		return nil, fmt.Errorf("read workflow file: %w", err)
	}
	var wf Workflow
	if err := yaml.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("parse workflow file: %w", err)
	}
	if err := wf.Validate(); err != nil {
		return nil, err
	}
	return &wf, nil
}

// Save writes the workflow to a YAML file.
func Save(wf *Workflow, path string) error {
	data, err := yaml.Marshal(wf)
	if err != nil {
		return fmt.Errorf("marshal workflow: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write workflow file: %w", err)
	}
	return nil
}

// Builder assembles a workflow through a fluent chain. Validation errors
// stick: once any added step is invalid, Build reports the first failure.
type Builder struct {
	name  string
	steps []Step
	err   error
}

// NewBuilder starts a workflow with the given name.
func NewBuilder(name string) *Builder {
	b := &Builder{name: name}
	if name == "" {
		b.err = fmt.Errorf("%w: workflow name is required", ErrInvalidStep)
	}
	return b
}

func (b *Builder) add(step Step) *Builder {
	if b.err != nil {
		return b
	}
	if err := step.Validate(); err != nil {
		b.err = fmt.Errorf("step %d: %w", len(b.steps), err)
		return b
	}
	b.steps = append(b.steps, step)
	return b
}

// Navigate loads a URL.
func (b *Builder) Navigate(url string) *Builder {
	return b.add(Step{ActionType: ActionNavigate, URL: url})
}

// Click clicks the element matched by selector.
func (b *Builder) Click(selector string) *Builder {
	return b.add(Step{ActionType: ActionClick, Selector: selector})
}

// TypeText fills the element matched by selector with text.
func (b *Builder) TypeText(selector, text string) *Builder {
	return b.add(Step{ActionType: ActionType, Selector: selector, Text: text})
}

// WaitForSelector waits for selector to appear.
func (b *Builder) WaitForSelector(selector string) *Builder {
	return b.add(Step{ActionType: ActionWaitForSelector, Selector: selector})
}

// WaitForTime pauses for a fixed duration.
func (b *Builder) WaitForTime(d time.Duration) *Builder {
	return b.add(Step{ActionType: ActionWaitForTime, DurationMS: int(d.Milliseconds())})
}

// ExtractText records the text content of selector.
func (b *Builder) ExtractText(selector string) *Builder {
	return b.add(Step{ActionType: ActionExtractText, Selector: selector})
}

// Scroll scrolls the page vertically by deltaY pixels.
func (b *Builder) Scroll(deltaY int) *Builder {
	return b.add(Step{ActionType: ActionScroll, DeltaY: deltaY})
}

// AssertElement asserts that selector matches at least one element.
func (b *Builder) AssertElement(selector string) *Builder {
	return b.add(Step{ActionType: ActionAssertElement, Selector: selector})
}

// AssertText asserts that the element matched by selector contains text.
func (b *Builder) AssertText(selector, text string) *Builder {
	return b.add(Step{ActionType: ActionAssertText, Selector: selector, Text: text})
}

// Build returns the assembled workflow or the first validation failure.
func (b *Builder) Build() (*Workflow, error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(b.steps) == 0 {
		return nil, ErrEmptyWorkflow
	}
	steps := make([]Step, len(b.steps))
	copy(steps, b.steps)
	return &Workflow{Name: b.name, Steps: steps}, nil
}
