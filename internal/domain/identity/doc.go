// Package identity holds the users allowed to sign in to the billing service.
package identity
