// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package pending resolves the identifiers still waiting to be ingested for an entity type.
package pending
