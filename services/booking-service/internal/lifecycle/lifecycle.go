// Package lifecycle owns the appointment transition table and who may drive each edge.
package lifecycle

import (
	"fmt"

	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/model"
)

// transitions maps from -> to -> the party allowed to make the move.
var transitions = map[model.Status]map[model.Status]model.Role{
	model.StatusPending: {
		model.StatusConfirmed: model.RoleProvider,
		model.StatusRejected:  model.RoleProvider,
		model.StatusCancelled: model.RoleClient,
	},
}

// Allowed reports whether from -> to is an edge of the lifecycle, regardless of actor.
func Allowed(from, to model.Status) bool {
	_, ok := transitions[from][to]
	return ok
}

// Terminal reports whether no transition leaves s.
func Terminal(s model.Status) bool {
	return len(transitions[s]) == 0
}

// Check decides whether actor may move appt to the target status. Outsiders get ErrForbidden
// before the edge is looked at, so they cannot probe an appointment's state.
func Check(actor model.Actor, appt model.Appointment, to model.Status) error {
	if !appt.HasParty(actor.UserID) {
		return fmt.Errorf("appointment %s: %w", appt.ID, apperr.ErrForbidden)
	}
	role, ok := transitions[appt.Status][to]
	if !ok {
		return fmt.Errorf("%s -> %s: %w", appt.Status, to, apperr.ErrInvalidTransition)
	}
	if !mayAct(actor, appt, role) {
		return fmt.Errorf("%s -> %s requires the %s: %w", appt.Status, to, role, apperr.ErrForbidden)
	}
	return nil
}

// Actions lists the statuses actor may currently move appt to.
func Actions(actor model.Actor, appt model.Appointment) []model.Status {
	var out []model.Status
	for _, to := range []model.Status{model.StatusConfirmed, model.StatusRejected, model.StatusCancelled} {
		if role, ok := transitions[appt.Status][to]; ok && mayAct(actor, appt, role) {
			out = append(out, to)
		}
	}
	return out
}

func mayAct(actor model.Actor, appt model.Appointment, role model.Role) bool {
	if actor.Role != role {
		return false
	}
	switch role {
	case model.RoleProvider:
		return actor.UserID == appt.ProviderID
	case model.RoleClient:
		return actor.UserID == appt.ClientID
	}
	return false
}
