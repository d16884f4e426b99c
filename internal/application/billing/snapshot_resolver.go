package billing

import (
	"context"
	"fmt"
	"strings"

	"github.com/erp/billing/internal/domain/billing"
	"github.com/erp/billing/internal/domain/shared"
	"github.com/erp/billing/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// SnapshotResolver reads the branch currency and tax rate that a new document freezes.
// It is consulted once per document, at creation.
type SnapshotResolver struct {
	branches billing.BranchDirectory
}

// NewSnapshotResolver creates a new SnapshotResolver
func NewSnapshotResolver(branches billing.BranchDirectory) *SnapshotResolver {
	return &SnapshotResolver{branches: branches}
}

// Resolve returns the currency and tax snapshot for a branch
func (r *SnapshotResolver) Resolve(ctx context.Context, branchID uuid.UUID) (billing.Snapshot, error) {
	_, snap, err := r.ResolveBranch(ctx, branchID)
	return snap, err
}

// ResolveBranch returns the branch together with its snapshot
func (r *SnapshotResolver) ResolveBranch(ctx context.Context, branchID uuid.UUID) (*billing.Branch, billing.Snapshot, error) {
	branch, err := r.branches.GetBranch(ctx, branchID)
	if err != nil {
		return nil, billing.Snapshot{}, err
	}
	snap, err := snapshotOf(branch)
	if err != nil {
		return nil, billing.Snapshot{}, err
	}
	return branch, snap, nil
}

// DefaultBranch returns the default active branch and its snapshot
func (r *SnapshotResolver) DefaultBranch(ctx context.Context) (*billing.Branch, billing.Snapshot, error) {
	branch, err := r.branches.DefaultBranch(ctx)
	if err != nil {
		return nil, billing.Snapshot{}, err
	}
	snap, err := snapshotOf(branch)
	if err != nil {
		return nil, billing.Snapshot{}, err
	}
	return branch, snap, nil
}

func snapshotOf(branch *billing.Branch) (billing.Snapshot, error) {
	if branch == nil || !branch.Active {
		return billing.Snapshot{}, shared.NewDomainError(shared.CodeNotFound, "Branch not found")
	}

	code := strings.TrimSpace(branch.Currency.Code)
	if code == "" {
		code = string(valueobject.DefaultCurrency)
	}
	cur, err := valueobject.ParseCurrency(code)
	if err != nil {
		return billing.Snapshot{}, shared.NewDomainError(shared.CodeValidation,
			fmt.Sprintf("Branch %s has an unsupported currency %q", branch.Code, branch.Currency.Code))
	}
	format, _ := valueobject.LookupCurrency(string(cur))

	symbol := strings.TrimSpace(branch.Currency.Symbol)
	if symbol == "" {
		symbol = format.Symbol
	}
	name := strings.TrimSpace(branch.Currency.Name)
	if name == "" {
		name = format.Name
	}

	return billing.Snapshot{
		Currency: billing.CurrencySnapshot{Code: string(cur), Symbol: symbol, Name: name},
		TaxRate:  branch.TaxRate,
	}, nil
}
