// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package cmd

import (
	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"
)

const (
	runCmdUsage = "run"
	runCmdShort = "compute, fetch and load the backlog of missing catalog entries"
	runCmdLong  = `Compute, fetch and load the backlog of missing catalog entries.
	The pending identifiers of every entity type are resolved first, then for each type
	the full records are fetched from the remote catalog into a local staging log and
	finally inserted in the backlog table in chunks.

	Without --prod only a small deterministic sample of the pending identifiers is
	processed for each entity type.`

	runCmdExample = `# Run a sample of the anime backlog
	malbacklog run --entity anime

	# Run the whole backlog with bigger transactions
	malbacklog run --prod --chunk-size 500`

	resolveCmdUsage = "resolve"
	resolveCmdShort = "compute the pending identifiers and save them in the work directory"
	resolveCmdLong  = `Compute the pending identifiers and save them in the work directory.
	An identifier is pending when it is present in the catalog table of its entity type
	and absent from the backlog table for that entity type.`

	resolveCmdExample = `# Save the pending manga identifiers in ./data
	WORK_DIR=data malbacklog resolve --entity manga --prod`

	fetchCmdUsage = "fetch"
	fetchCmdShort = "fetch the records of the saved pending identifiers into the staging logs"
	fetchCmdLong  = `Fetch the records of the saved pending identifiers into the staging logs.
	The pending files written by the resolve command are read from the work directory.
	Records that cannot be fetched are skipped and stay pending for the next run.`

	fetchCmdExample = `# Fetch every entity type waiting longer after each failure
	COOLDOWN_POLICY=exponential malbacklog fetch`

	loadCmdUsage = "load"
	loadCmdShort = "insert the staged records in the backlog table"
	loadCmdLong  = `Insert the staged records in the backlog table.
	Only staging logs that were fully written and not already loaded are inserted,
	unless the --force flag is set.`

	loadCmdExample = `# Load the anime staging log in chunks of 50 records
	malbacklog load --entity anime --chunk-size 50

	# Load a staging log left behind by an interrupted fetch
	malbacklog load --entity manga --force`
)

type commandSpec struct {
	phase     phase
	use       string
	short     string
	long      string
	example   string
	withForce bool
}

// RunCmd returns the "run" cli command executing every phase.
func RunCmd() *cobra.Command {
	return phaseCmd(commandSpec{
		phase:   phaseRun,
		use:     runCmdUsage,
		short:   runCmdShort,
		long:    runCmdLong,
		example: runCmdExample,
	})
}

// ResolveCmd returns the "resolve" cli command.
func ResolveCmd() *cobra.Command {
	return phaseCmd(commandSpec{
		phase:   phaseResolve,
		use:     resolveCmdUsage,
		short:   resolveCmdShort,
		long:    resolveCmdLong,
		example: resolveCmdExample,
	})
}

// FetchCmd returns the "fetch" cli command.
func FetchCmd() *cobra.Command {
	return phaseCmd(commandSpec{
		phase:   phaseFetch,
		use:     fetchCmdUsage,
		short:   fetchCmdShort,
		long:    fetchCmdLong,
		example: fetchCmdExample,
	})
}

// LoadCmd returns the "load" cli command.
func LoadCmd() *cobra.Command {
	return phaseCmd(commandSpec{
		phase:     phaseLoad,
		use:       loadCmdUsage,
		short:     loadCmdShort,
		long:      loadCmdLong,
		example:   loadCmdExample,
		withForce: true,
	})
}

func phaseCmd(spec commandSpec) *cobra.Command {
	flags := &flags{}
	cmd := &cobra.Command{
		Use:     spec.use,
		Short:   heredoc.Doc(spec.short),
		Long:    heredoc.Doc(spec.long),
		Example: heredoc.Doc(spec.example),

		SilenceErrors: true,
		SilenceUsage:  true,

		Args:              noArgs,
		ValidArgsFunction: cobra.NoFileCompletions,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := flags.toOptions(cmd, spec.phase)
			if err != nil {
				return handleError(cmd, err)
			}

			if err := opts.validate(); err != nil {
				return handleError(cmd, err)
			}

			if err := opts.execute(cmd.Context()); err != nil {
				return handleError(cmd, err)
			}

			return nil
		},
	}

	flags.addFlags(cmd, spec.withForce)
	return cmd
}
