// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package server contains the optional status server of a backlog run.
// It sets up the HTTP server using the Fiber framework, configures middleware for logging,
// and exposes health checks together with the latest run summaries.
package server
