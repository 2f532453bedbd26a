package schema

import "github.com/marianoelfernandez/ancap-ia-challenge-2025/pkg/models"

// Table identifiers are compared upper-cased everywhere; the allow-lists
// and the catalog below are the single source of truth.

// masterTables are reference tables shared by the delivery and invoicing
// subject areas.
var masterTables = []string{
	"DISTRIBUIDORAS",
	"PLANTAS",
	"POLITICAS",
	"MERCADOS",
	"CLIENTES",
	"CLITPO",
	"CLIDIR",
	"DEPARTAMENTOS",
	"LOCALIDADES",
	"PRODUCTOS",
	"PRDGRP",
	"PRDCAT",
	"NEGOCIOS",
	"NEGTPO",
	"MONEDAS",
}

// deliveryTables hold the cargo-document subject area.
var deliveryTables = []string{"DOCCRG", "DCPRDLIN"}

// invoiceTables hold the invoicing subject area.
var invoiceTables = []string{"FACCAB", "FACLINPR"}

// KnownTables is the full catalog of warehouse tables, in catalog order.
// Table extraction scans generated SQL against this list, so a table
// missing here can never be attributed (or permission-checked).
var KnownTables = concat(deliveryTables, invoiceTables, masterTables)

// TablesPerRole maps each role to its allow-list. Roles absent from this
// map have an empty allow-list (deny-all).
var TablesPerRole = map[string][]string{
	models.RoleAdmin:    KnownTables,
	models.RoleEntregas: concat(deliveryTables, masterTables),
	models.RoleFacturas: concat(invoiceTables, masterTables),
}

// AllowedTables returns the allow-list for a role as a set keyed by
// upper-cased table name. Unknown roles get an empty set.
func AllowedTables(role string) map[string]struct{} {
	allowed := make(map[string]struct{})
	for _, t := range TablesPerRole[role] {
		allowed[t] = struct{}{}
	}
	return allowed
}

func concat(lists ...[]string) []string {
	var out []string
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}
