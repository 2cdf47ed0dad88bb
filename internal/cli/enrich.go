package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/REZ0AN/TaskPilot/internal/bootstrap"
	"github.com/REZ0AN/TaskPilot/internal/events"
	"github.com/REZ0AN/TaskPilot/internal/service"
	"github.com/REZ0AN/TaskPilot/internal/workflow"
)

var enrichTicketID string

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Run the enrichment workflow for one ticket",
	Long: `Run the ticket enrichment workflow in the foreground under a fresh run id.
The ticket is re-triaged and re-assigned exactly as after creation.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if enrichTicketID == "" {
			return errors.New("--ticket is required")
		}

		return withServices(cmd.Context(), func(b *bootstrap.Backends, s *bootstrap.Services) error {
			eventID := "cli-" + uuid.NewString()
			payload := events.TicketCreatePayload{TicketID: enrichTicketID}
			err := s.Engine.Execute(cmd.Context(), service.EnrichmentDefinition, eventID, func(ctx context.Context, run *workflow.Run) error {
				return s.Enrichment.Handle(ctx, run, payload)
			})
			if err != nil {
				return fmt.Errorf("run %s failed: %w", workflow.RunID(service.EnrichmentDefinition, eventID), err)
			}

			ticket, err := s.Tickets.GetTicket(cmd.Context(), enrichTicketID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Ticket %s enriched\n", ticket.ID)
			fmt.Fprintf(out, "  state:    %s\n", ticket.State)
			if ticket.Priority != nil {
				fmt.Fprintf(out, "  priority: %s\n", *ticket.Priority)
			}
			if ticket.AssignedTo != nil {
				fmt.Fprintf(out, "  assignee: %s\n", *ticket.AssignedTo)
			}
			return nil
		})
	},
}

func init() {
	enrichCmd.Flags().StringVar(&enrichTicketID, "ticket", "", "ticket id")
}
