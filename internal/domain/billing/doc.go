// Package billing provides the domain model for invoices and quotations issued by branches.
//
// The package is the core of the financial document engine:
//   - Document: aggregate root shared by invoices and quotations
//   - Compute: pure money calculator (line totals, subtotal, tax, total) at currency precision
//   - NextStatus: explicit per-type transition table driving the document lifecycle
//   - FormatNumber / ParseNumber: document numbering scheme (INV-0001, Q-0001)
//
// Persistence concerns (atomic number allocation, conditional status updates) are expressed
// as ports in repository.go and implemented by the infrastructure layer.
package billing
