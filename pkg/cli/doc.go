/*
Package cli provides command-line helpers shared by the throttle commands.

Output Formatting:

Commands build a Table and render it in the format chosen by --output:

	table := &cli.Table{Headers: []string{"LIMITER", "LIMIT"}}
	table.Append("api", "10 requests per second")
	if err := cli.NewFormatter(cli.FormatJSON).FormatTo(os.Stdout, table); err != nil {
		return err
	}

Text output is column-aligned, CSV writes one record per row, and JSON
writes an array of objects keyed by header.

Progress Reporting:

The bench command reports offered and admitted load while it runs:

	progress := cli.NewProgressReporter(os.Stderr)
	progress.Start(expected)
	progress.Update(offered, admitted)
	progress.Finish()

Signal Handling:

	ctx, stop := cli.SetupSignalHandler()
	defer stop()

Errors:

ConfigError and CommandError carry the failing file or command. ExitCode
maps them to process exit statuses.
*/
package cli
