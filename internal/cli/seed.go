package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/erp/billing/internal/domain/billing"
	"github.com/erp/billing/internal/domain/identity"
	"github.com/erp/billing/internal/domain/shared"
	"github.com/erp/billing/internal/domain/shared/valueobject"
	"github.com/erp/billing/internal/infrastructure/persistence"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// seedCurrencies are assigned to branches in turn so that every precision is exercised
var seedCurrencies = []valueobject.Currency{
	valueobject.GBP, valueobject.USD, valueobject.EUR, valueobject.JPY, valueobject.KWD, valueobject.AED,
}

var (
	seedTaxRates     = []int64{0, 5, 10, 15, 20}
	seedPaymentTerms = []int{7, 14, 30, 45}
)

// SeedOptions controls how much development data is generated
type SeedOptions struct {
	Branches  int
	Customers int
	Password  string
	// Seed makes the generated data reproducible; 0 picks a random seed
	Seed uint64
}

// SeedUser is a login created by the seeder
type SeedUser struct {
	Email   string
	Role    identity.Role
	Created bool
}

// SeedResult lists what the seeder wrote
type SeedResult struct {
	Branches  []billing.Branch
	Customers []billing.Customer
	Users     []SeedUser
}

// Seeder fills an empty database with branches, customers and one user per role
type Seeder struct {
	branches  *persistence.GormBranchDirectory
	customers *persistence.GormCustomerDirectory
	users     *persistence.GormUserRepository
	logger    *zap.Logger
}

// NewSeeder creates a seeder on db
func NewSeeder(db *persistence.Database, logger *zap.Logger) *Seeder {
	return &Seeder{
		branches:  persistence.NewGormBranchDirectory(db.DB),
		customers: persistence.NewGormCustomerDirectory(db.DB),
		users:     persistence.NewGormUserRepository(db.DB),
		logger:    logger,
	}
}

// Run writes the branches, customers and users. Branches are upserted by code
// and users that already exist are left untouched, so running it twice is safe.
func (s *Seeder) Run(ctx context.Context, opts SeedOptions) (*SeedResult, error) {
	if opts.Branches < 1 || opts.Customers < 1 {
		return nil, fmt.Errorf("seed needs at least one branch and one customer")
	}
	faker := gofakeit.New(opts.Seed)
	result := &SeedResult{}

	for i := 0; i < opts.Branches; i++ {
		branch := fakeBranch(faker, i)
		if err := s.branches.Save(ctx, &branch); err != nil {
			return nil, err
		}
		result.Branches = append(result.Branches, branch)
	}
	if err := s.resolveBranchIDs(ctx, result.Branches); err != nil {
		return nil, err
	}
	for i := 0; i < opts.Customers; i++ {
		customer := billing.Customer{
			ID:      uuid.New(),
			Name:    faker.Company(),
			Email:   strings.ToLower(faker.Email()),
			Phone:   faker.Phone(),
			Address: faker.Address().Address,
		}
		if err := s.customers.Save(ctx, &customer); err != nil {
			return nil, err
		}
		result.Customers = append(result.Customers, customer)
	}

	branchID := result.Branches[0].ID
	customerID := result.Customers[0].ID
	logins := []struct {
		name, email string
		role        identity.Role
	}{
		{"Billing Admin", "admin@billing.local", identity.RoleAdmin},
		{"Billing Staff", "staff@billing.local", identity.RoleStaff},
		{result.Customers[0].Name, "customer@billing.local", identity.RoleCustomer},
	}
	for _, l := range logins {
		created, err := s.ensureUser(ctx, l.name, l.email, opts.Password, l.role, &branchID, &customerID)
		if err != nil {
			return nil, err
		}
		result.Users = append(result.Users, SeedUser{Email: l.email, Role: l.role, Created: created})
	}

	s.logger.Info("Seed finished",
		zap.Int("branches", len(result.Branches)),
		zap.Int("customers", len(result.Customers)))
	return result, nil
}

// resolveBranchIDs replaces generated IDs with the stored ones, which differ
// when an upsert hit an existing branch code
func (s *Seeder) resolveBranchIDs(ctx context.Context, branches []billing.Branch) error {
	stored, err := s.branches.List(ctx)
	if err != nil {
		return err
	}
	byCode := make(map[string]uuid.UUID, len(stored))
	for _, b := range stored {
		byCode[b.Code] = b.ID
	}
	for i := range branches {
		if id, ok := byCode[branches[i].Code]; ok {
			branches[i].ID = id
		}
	}
	return nil
}

func (s *Seeder) ensureUser(ctx context.Context, name, email, password string, role identity.Role, branchID, customerID *uuid.UUID) (bool, error) {
	_, err := s.users.FindByEmail(ctx, email)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return false, err
	}
	user, err := identity.NewUser(name, email, password, role, branchID, customerID)
	if err != nil {
		return false, err
	}
	if err := s.users.Create(ctx, user); err != nil {
		return false, err
	}
	return true, nil
}

func fakeBranch(faker *gofakeit.Faker, i int) billing.Branch {
	code := seedCurrencies[i%len(seedCurrencies)]
	format, _ := valueobject.LookupCurrency(string(code))
	city := faker.City()
	return billing.Branch{
		Code: fmt.Sprintf("%s-%02d", code, i+1),
		Name: city + " Branch",
		Currency: billing.CurrencySnapshot{
			Code:   string(format.Code),
			Symbol: format.Symbol,
			Name:   format.Name,
		},
		TaxRate:          decimal.NewFromInt(seedTaxRates[faker.Number(0, len(seedTaxRates)-1)]),
		QuotationTerms:   "Prices are valid for 30 days from the issue date.",
		PaymentTermsDays: seedPaymentTerms[faker.Number(0, len(seedPaymentTerms)-1)],
		Active:           true,
	}
}

func newSeedCommand(env *Env) *cobra.Command {
	opts := SeedOptions{}
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Generate development branches, customers and users",
		Long: `Generate branches in mixed currencies, fake customers and three logins:
admin@billing.local, staff@billing.local and customer@billing.local.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := env.Config()
			if err != nil {
				return err
			}
			if cfg.IsProduction() {
				return fmt.Errorf("refusing to seed a production environment")
			}
			db, err := env.Database()
			if err != nil {
				return err
			}
			result, err := NewSeeder(db, env.Logger()).Run(cmd.Context(), opts)
			if err != nil {
				return err
			}
			printSeedResult(cmd, result)
			return nil
		},
	}
	cmd.Flags().IntVar(&opts.Branches, "branches", 3, "number of branches")
	cmd.Flags().IntVar(&opts.Customers, "customers", 5, "number of customers")
	cmd.Flags().StringVar(&opts.Password, "password", "billing-dev-password", "password of the seeded users")
	cmd.Flags().Uint64Var(&opts.Seed, "seed", 0, "random seed for reproducible data (0 = random)")
	return cmd
}

func printSeedResult(cmd *cobra.Command, result *SeedResult) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "BRANCH\tCURRENCY\tTAX\tID")
	for _, b := range result.Branches {
		fmt.Fprintf(w, "%s\t%s\t%s%%\t%s\n", b.Code, b.Currency.Code, b.TaxRate.String(), b.ID)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "CUSTOMER\tEMAIL\tID")
	for _, c := range result.Customers {
		fmt.Fprintf(w, "%s\t%s\t%s\n", c.Name, c.Email, c.ID)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "USER\tROLE\tSTATUS")
	for _, u := range result.Users {
		status := "exists"
		if u.Created {
			status = "created"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", u.Email, u.Role, status)
	}
	_ = w.Flush()
}
