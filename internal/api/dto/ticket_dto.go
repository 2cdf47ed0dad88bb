package dto

import (
	"time"

	"github.com/REZ0AN/TaskPilot/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// UpdateTicketRequest payload. Omitted fields are left untouched.
type UpdateTicketRequest struct {
	State         *string  `json:"state"`
	Priority      *string  `json:"priority"`
	AssignedTo    *string  `json:"assignedTo"`
	RelatedSkills []string `json:"relatedSkills"`
}

// TicketResponse is the public shape of a ticket.
type TicketResponse struct {
	ID            string                 `json:"id"`
	Title         string                 `json:"title"`
	Description   string                 `json:"description"`
	State         domain.TicketState     `json:"state"`
	CreatedBy     string                 `json:"createdBy"`
	AssignedTo    *string                `json:"assignedTo"`
	Priority      *domain.TicketPriority `json:"priority"`
	Deadline      *time.Time             `json:"deadline"`
	HelpNotes     string                 `json:"helpNotes"`
	RelatedSkills []string               `json:"relatedSkills"`
	CreatedAt     time.Time              `json:"createdAt"`
	UpdatedAt     time.Time              `json:"updatedAt"`
}

// NewTicketResponse maps a domain ticket.
func NewTicketResponse(t *domain.Ticket) TicketResponse {
	skills := t.RelatedSkills
	if skills == nil {
		skills = []string{}
	}
	return TicketResponse{
		ID:            t.ID,
		Title:         t.Title,
		Description:   t.Description,
		State:         t.State,
		CreatedBy:     t.CreatedBy,
		AssignedTo:    t.AssignedTo,
		Priority:      t.Priority,
		Deadline:      t.Deadline,
		HelpNotes:     t.HelpNotes,
		RelatedSkills: skills,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
}
