package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/erp/billing/internal/domain/billing"
	"github.com/erp/billing/internal/infrastructure/persistence"
	"github.com/spf13/cobra"
)

var documentTypes = []billing.DocumentType{billing.DocumentTypeInvoice, billing.DocumentTypeQuotation}

// SequenceState compares a numbering counter with the highest stored number
type SequenceState struct {
	Type    billing.DocumentType
	Counter int64
	Highest int64
}

// Behind reports whether the next allocation would collide with a stored number
func (s SequenceState) Behind() bool {
	return s.Counter < s.Highest
}

// SequenceInspector reads and repairs document numbering counters
type SequenceInspector struct {
	sequences *persistence.GormSequenceAllocator
	documents *persistence.GormDocumentRepository
}

// NewSequenceInspector creates an inspector on db
func NewSequenceInspector(db *persistence.Database) *SequenceInspector {
	return &SequenceInspector{
		sequences: persistence.NewGormSequenceAllocator(db.DB),
		documents: persistence.NewGormDocumentRepository(db.DB),
	}
}

// States returns the counter and highest stored number of every document type
func (i *SequenceInspector) States(ctx context.Context) ([]SequenceState, error) {
	states := make([]SequenceState, 0, len(documentTypes))
	for _, t := range documentTypes {
		counter, err := i.sequences.Current(ctx, t)
		if err != nil {
			return nil, err
		}
		highest, err := i.documents.MaxSequence(ctx, t)
		if err != nil {
			return nil, err
		}
		states = append(states, SequenceState{Type: t, Counter: counter, Highest: highest})
	}
	return states, nil
}

// Sync raises every counter that is behind its highest stored number.
// Counters only move forward; the returned states are those before the sync.
func (i *SequenceInspector) Sync(ctx context.Context) ([]SequenceState, error) {
	states, err := i.States(ctx)
	if err != nil {
		return nil, err
	}
	for _, s := range states {
		if !s.Behind() {
			continue
		}
		if err := i.sequences.AdvanceTo(ctx, s.Type, s.Highest); err != nil {
			return nil, err
		}
	}
	return states, nil
}

func newSequencesCommand(env *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sequences",
		Short: "Inspect or reconcile document numbering counters",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show each counter next to the highest stored number",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := env.Database()
			if err != nil {
				return err
			}
			states, err := NewSequenceInspector(db).States(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TYPE\tCOUNTER\tHIGHEST\tNEXT")
			for _, s := range states {
				fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", s.Type, s.Counter, formatHighest(s), billing.FormatNumber(s.Type, s.Counter+1))
			}
			return w.Flush()
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "sync",
		Short: "Advance counters that fell behind imported documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := env.Database()
			if err != nil {
				return err
			}
			states, err := NewSequenceInspector(db).Sync(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, s := range states {
				if s.Behind() {
					fmt.Fprintf(out, "%s: counter advanced %d -> %d\n", s.Type, s.Counter, s.Highest)
				} else {
					fmt.Fprintf(out, "%s: up to date (%d)\n", s.Type, s.Counter)
				}
			}
			return nil
		},
	})
	return cmd
}

func formatHighest(s SequenceState) string {
	if s.Highest == 0 {
		return "-"
	}
	return billing.FormatNumber(s.Type, s.Highest)
}
