// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package logger wraps hclog behind a small interface shared by every malbacklog component.
// Loggers travel through context.Context, and the package also ships the request logging
// middleware used by the status server.
package logger
