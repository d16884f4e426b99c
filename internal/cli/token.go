package cli

import (
	"fmt"

	"github.com/erp/billing/internal/domain/identity"
	"github.com/erp/billing/internal/infrastructure/auth"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

type tokenOptions struct {
	role       string
	userID     string
	email      string
	customerID string
	branchID   string
}

func newTokenCommand(env *Env) *cobra.Command {
	opts := tokenOptions{}
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an access token for local testing",
		Long: `Issue a signed access token with the configured JWT secret.
The token is printed alone on stdout so it can be captured by scripts.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := env.Config()
			if err != nil {
				return err
			}
			if cfg.IsProduction() {
				return fmt.Errorf("refusing to issue tokens in a production environment")
			}
			input, err := opts.input()
			if err != nil {
				return err
			}
			token, err := auth.NewJWTService(cfg.JWT).GenerateAccessToken(input)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token.AccessToken)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.role, "role", "", "role of the token (admin|staff|customer)")
	cmd.Flags().StringVar(&opts.userID, "user-id", "", "user ID (random when empty)")
	cmd.Flags().StringVar(&opts.email, "email", "", "email claim")
	cmd.Flags().StringVar(&opts.customerID, "customer-id", "", "customer the token acts for (required for customer)")
	cmd.Flags().StringVar(&opts.branchID, "branch-id", "", "branch of a staff user")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}

func (o tokenOptions) input() (auth.GenerateTokenInput, error) {
	role := identity.Role(o.role)
	if !role.IsValid() {
		return auth.GenerateTokenInput{}, fmt.Errorf("role must be admin, staff or customer, got %q", o.role)
	}

	userID := uuid.New()
	if o.userID != "" {
		parsed, err := uuid.Parse(o.userID)
		if err != nil {
			return auth.GenerateTokenInput{}, fmt.Errorf("invalid --user-id: %w", err)
		}
		userID = parsed
	}
	customerID, err := optionalID("customer-id", o.customerID)
	if err != nil {
		return auth.GenerateTokenInput{}, err
	}
	branchID, err := optionalID("branch-id", o.branchID)
	if err != nil {
		return auth.GenerateTokenInput{}, err
	}
	if role == identity.RoleCustomer && customerID == nil {
		return auth.GenerateTokenInput{}, fmt.Errorf("--customer-id is required for the customer role")
	}
	if role != identity.RoleCustomer {
		customerID = nil
	}

	return auth.GenerateTokenInput{
		UserID:     userID,
		Email:      o.email,
		Role:       role.String(),
		CustomerID: customerID,
		BranchID:   branchID,
	}, nil
}

func optionalID(flag, value string) (*uuid.UUID, error) {
	if value == "" {
		return nil, nil
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return nil, fmt.Errorf("invalid --%s: %w", flag, err)
	}
	return &id, nil
}
