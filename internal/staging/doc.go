// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package staging manages the intermediate files kept in the work directory between the phases
// of a run.
//
// For every entity type the directory can contain:
//
//	<entity>.json             the pending identifiers computed by the resolver
//	<entity>.jsonl            the staging log, one JSON record per line
//	<entity>.jsonl.complete   written once the fetch phase has gone through every identifier
//	<entity>.jsonl.loaded     written once the loader has consumed the staging log
//
// The staging log is truncated when a new fetch phase starts and every appended line is synced
// to disk before Append returns, so a crash never loses a record that was reported as staged.
package staging
