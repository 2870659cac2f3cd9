// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package config reads the run settings from the environment, optionally seeded by a dotenv
// file, and the database credentials from a YAML file.
package config
