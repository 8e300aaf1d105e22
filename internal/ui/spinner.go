package ui

import (
	"fmt"
	"time"

	"github.com/briandowns/spinner"
)

type StepSpinner struct {
	spinner *spinner.Spinner
	current string
}

func NewStepSpinner() *StepSpinner {
	s := spinner.New(spinner.CharSets[11], 100*time.Millisecond)
	s.Prefix = "[installer] "
	return &StepSpinner{
		spinner: s,
	}
}

func (s *StepSpinner) Start(step string) {
	s.current = step
	s.spinner.Suffix = fmt.Sprintf(" %s", step)
	s.spinner.Start()
}

func (s *StepSpinner) Stop(success bool) {
	s.spinner.Stop()
	if success {
		fmt.Printf("✅ %s\n", s.current)
	} else {
		fmt.Printf("❌ %s\n", s.current)
	}
}
