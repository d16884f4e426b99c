package cli

import (
	"fmt"

	appbilling "github.com/erp/billing/internal/application/billing"
	"github.com/erp/billing/internal/infrastructure/persistence"
	"github.com/spf13/cobra"
)

func newSweepCommand(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Mark invoices past their due date overdue and quotations past validity expired",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := env.Config()
			if err != nil {
				return err
			}
			db, err := env.Database()
			if err != nil {
				return err
			}
			branches := persistence.NewGormBranchDirectory(db.DB)
			service := appbilling.NewDocumentService(
				persistence.NewGormDocumentRepository(db.DB),
				persistence.NewGormCustomerDirectory(db.DB),
				appbilling.NewSnapshotResolver(branches),
				persistence.NewGormTransactionScope(db.DB),
				appbilling.ServiceConfig{
					DefaultDueDays:        cfg.Billing.DefaultDueDays,
					QuotationValidityDays: cfg.Billing.QuotationValidityDays,
					DefaultTerms:          cfg.Billing.DefaultTerms,
				},
				env.Logger(),
			)
			result, err := service.SweepElapsed(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "overdue: %d\nexpired: %d\n", result.Overdue, result.Expired)
			return nil
		},
	}
}
