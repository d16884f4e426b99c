// Package models contains GORM persistence models that map to database tables.
// Domain entities stay free of ORM tags; each model converts to and from its
// domain type with ToDomain and FromDomain.
//
//   - base.go: shared id and timestamp columns
//   - billing.go: documents, line items, attachments and sequence counters
//   - directory.go: branches and customers
//   - identity.go: users
package models
