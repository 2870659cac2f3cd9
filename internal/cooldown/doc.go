// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package cooldown contains the strategies used to slow down after a failed fetch, so a
// rate-limited or failing source is not hammered by consecutive requests.
package cooldown
