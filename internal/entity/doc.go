// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package entity defines the closed set of catalog kinds handled by the ingestion pipeline
// and the mapping between each kind and the relational table that lists its identifiers.
package entity
