// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package fetcher retrieves the records of pending identifiers from a source.
//
// Every identifier is attempted at most once per run. A failure while fetching or serializing a
// record is logged, followed by the cooldown of the configured policy, and the identifier is
// skipped: it stays pending and is attempted again by the next run.
package fetcher
