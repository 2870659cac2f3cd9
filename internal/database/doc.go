// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package database opens the relational store holding the catalog and backlog tables and
// exposes it through a goqu query builder configured for the dialect of the chosen driver.
package database
