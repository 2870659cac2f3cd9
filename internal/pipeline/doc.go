// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package pipeline coordinates the phases of an ingestion run.
// A run resolves the pending identifiers of every configured entity type first, then for each
// type in order fetches the pending records into the staging log and loads the log into the
// backlog table. Every phase opens its own database connection.
package pipeline
