package services

import (
	"context"

	"github.com/looplab/fsm"

	"github.com/qianh/prompt-tower/internal/apperr"
	"github.com/qianh/prompt-tower/internal/models"
)

const eventToggle = "toggle"

// newStatusMachine returns the enabled/disabled state machine positioned at
// current.
func newStatusMachine(current models.PromptStatus) *fsm.FSM {
	return fsm.NewFSM(
		string(current),
		fsm.Events{
			{Name: eventToggle, Src: []string{string(models.PromptStatusEnabled)}, Dst: string(models.PromptStatusDisabled)},
			{Name: eventToggle, Src: []string{string(models.PromptStatusDisabled)}, Dst: string(models.PromptStatusEnabled)},
		},
		fsm.Callbacks{},
	)
}

// toggledStatus returns the status a toggle moves current to.
func toggledStatus(ctx context.Context, current models.PromptStatus) (models.PromptStatus, error) {
	if !current.Valid() {
		return "", apperr.Validation("unknown prompt status %q", current)
	}
	machine := newStatusMachine(current)
	if err := machine.Event(ctx, eventToggle); err != nil {
		return "", apperr.Internal(err, "toggle status from %s", current)
	}
	return models.PromptStatus(machine.Current()), nil
}
