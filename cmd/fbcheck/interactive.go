package main

import (
	"fmt"

	"github.com/eiannone/keyboard"

	"github.com/chmdznr/framer-bandwidth-check/internal/bandwidth"
	"github.com/chmdznr/framer-bandwidth-check/internal/report"
)

const calculatorHelp = "up/down: pageviews  left/right: pages per visit  r: reset  q: quit"

// keyAction maps a key press to a calculator action. quit is set for q, Esc
// and Ctrl+C.
func keyAction(char rune, key keyboard.Key) (action bandwidth.Action, quit bool) {
	switch key {
	case keyboard.KeyArrowUp:
		return bandwidth.ActionMorePageviews, false
	case keyboard.KeyArrowDown:
		return bandwidth.ActionFewerPageviews, false
	case keyboard.KeyArrowRight:
		return bandwidth.ActionMorePagesPerVisit, false
	case keyboard.KeyArrowLeft:
		return bandwidth.ActionFewerPagesPerVisit, false
	case keyboard.KeyEsc, keyboard.KeyCtrlC:
		return bandwidth.ActionNone, true
	}

	switch char {
	case '+', 'k':
		return bandwidth.ActionMorePageviews, false
	case '-', 'j':
		return bandwidth.ActionFewerPageviews, false
	case 'l':
		return bandwidth.ActionMorePagesPerVisit, false
	case 'h':
		return bandwidth.ActionFewerPagesPerVisit, false
	case 'r', 'R':
		return bandwidth.ActionReset, false
	case 'q', 'Q':
		return bandwidth.ActionNone, true
	}
	return bandwidth.ActionNone, false
}

// runCalculator redraws the projection after every adjustment until the
// user quits.
func runCalculator(f *report.Formatter, calc *bandwidth.Calculator) error {
	if err := keyboard.Open(); err != nil {
		return fmt.Errorf("failed to open keyboard: %w", err)
	}
	defer keyboard.Close()

	render := func(p *bandwidth.Projection) error {
		fmt.Fprint(f.Writer, "\033[H\033[2J")
		if err := f.PrintProjection(p, calc.Assumptions()); err != nil {
			return err
		}
		fmt.Fprintf(f.Writer, "\n%s\n", calculatorHelp)
		return nil
	}

	if err := render(calc.Projection()); err != nil {
		return err
	}
	for {
		char, key, err := keyboard.GetKey()
		if err != nil {
			return fmt.Errorf("failed to read key: %w", err)
		}
		action, quit := keyAction(char, key)
		if quit {
			return nil
		}
		if action == bandwidth.ActionNone {
			continue
		}
		if err := render(calc.Apply(action)); err != nil {
			return err
		}
	}
}
