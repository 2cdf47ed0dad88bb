package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/REZ0AN/TaskPilot/internal/bootstrap"
	"github.com/REZ0AN/TaskPilot/internal/domain"
	"github.com/REZ0AN/TaskPilot/internal/service"
)

var resolveFlags struct {
	role      string
	threshold int
	skills    []string
}

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Dry-run the assignment resolver",
	Long: `Sample under-loaded users of a role, rank them by skill fit and walk the
fallback chain, printing the user that would be assigned. Nothing is written.

The fallback chain is the one of the transition that uses the role:
dev follows the In Progress chain, sdev the In Peer Review chain.`,
	Example: `  taskpilotctl resolve --role dev --threshold 3 --skills Docker,AWS`,
	RunE: func(cmd *cobra.Command, args []string) error {
		policy, err := policyForRole(domain.UserRole(resolveFlags.role))
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("threshold") {
			policy.Threshold = resolveFlags.threshold
		}

		return withServices(cmd.Context(), func(b *bootstrap.Backends, s *bootstrap.Services) error {
			out := cmd.OutOrStdout()

			candidates, err := service.NewWorkloadSampler(b.Tickets).Sample(cmd.Context(), policy.Role, policy.Threshold)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Under-threshold %s users (< %d): %d\n", policy.Role, policy.Threshold, len(candidates))
			for _, c := range candidates {
				fmt.Fprintf(out, "  %s\n", c.ID)
			}

			assignee, err := s.Resolver.Resolve(cmd.Context(), policy, resolveFlags.skills)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Assignee: %s\n", assignee.ID)
			return nil
		})
	},
}

func policyForRole(role domain.UserRole) (service.AssignmentPolicy, error) {
	switch role {
	case service.InProgressPolicy.Role:
		return service.InProgressPolicy, nil
	case service.InPeerReviewPolicy.Role:
		return service.InPeerReviewPolicy, nil
	}
	return service.AssignmentPolicy{}, fmt.Errorf("no assignment policy for role %q (want %s)",
		role, strings.Join([]string{string(service.InProgressPolicy.Role), string(service.InPeerReviewPolicy.Role)}, " or "))
}

func init() {
	resolveCmd.Flags().StringVar(&resolveFlags.role, "role", string(domain.UserRoleDev), "role to sample")
	resolveCmd.Flags().IntVar(&resolveFlags.threshold, "threshold", 0, "workload threshold (default from the role's policy)")
	resolveCmd.Flags().StringSliceVar(&resolveFlags.skills, "skills", nil, "required skills, comma separated")
}
