// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package loader moves staged records into the backlog table.
//
// Records are grouped in chunks and every chunk is inserted inside its own transaction, one
// INSERT per record with bound parameters. A chunk is either committed in full or rolled back;
// the identifiers of a rolled back chunk stay absent from the backlog and are resolved again as
// pending by the next run.
package loader
