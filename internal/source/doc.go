// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package source defines the contract of the external catalogs the records are fetched from,
// together with the records they return.
// Sources are slow, rate limited and may fail for a single record: callers are expected
// to isolate every failure to the identifier that caused it.
package source
