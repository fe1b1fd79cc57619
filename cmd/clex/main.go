package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/xplshn/clex/pkg/cli"
	"github.com/xplshn/clex/pkg/config"
	"github.com/xplshn/clex/pkg/report"
	"github.com/xplshn/clex/pkg/scanner"
	"github.com/xplshn/clex/pkg/util"
)

func main() {
	os.Exit(realMain(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// realMain runs one invocation and returns its exit status: 0 on success, 1
// on bad usage or an I/O failure, 2 under -Fstrict when the scan reported
// errors.
func realMain(arguments []string, stdin io.Reader, stdout, stderr io.Writer) int {
	app := cli.NewApp("clex")
	app.Synopsis = "[options] [input.c]"
	app.Description = "A lexical analyzer for C. Prints every token as it is classified, then the symbol and constant tables."
	app.Authors = []string{"xplshn"}
	app.Repository = "<https://github.com/xplshn/clex>"
	app.Since = 2025
	app.Stdout, app.Stderr = stdout, stderr

	var (
		outFile  string
		format   string
		std      string
		noTokens bool
		noTables bool
		pedantic bool
		wall     bool
		wnoAll   bool
	)

	fs := app.FlagSet
	fs.String(&outFile, "output", "o", "", "Write the report to <file> instead of stdout.", "file")
	fs.String(&format, "format", "f", "text", "Report format (text, json).", "format")
	fs.Bool(&noTokens, "no-tokens", "T", false, "Do not print the token stream.")
	fs.Bool(&noTables, "no-tables", "", false, "Do not print the symbol and constant tables.")
	fs.String(&std, "std", "", "gnu", "Specify language standard (c89, c99, c11, c23, gnu)", "std")
	fs.Bool(&pedantic, "pedantic", "", false, "Issue all warnings demanded by the current C std.")
	fs.Bool(&wall, "Wall", "", false, "Enable all warnings except pedantic.")
	fs.Bool(&wnoAll, "Wno-all", "", false, "Disable all warnings.")

	cfg := config.NewConfig()
	warningFlags, featureFlags := cfg.SetupFlagGroups(fs)

	exitCode := 0
	fatal := func(msg string, args ...any) error {
		util.PrintFatal(stderr, app.Name, msg, args...)
		exitCode = 1
		return errFatal
	}

	app.Action = func(args []string) error {
		// Pedantic flag affects the std preset
		if pedantic {
			cfg.SetWarning(config.WarnPedantic, true)
		}
		if err := cfg.ApplyStd(std); err != nil {
			return fatal("%v", err)
		}
		if wall {
			cfg.ProcessFlags([]string{"-Wall"})
		}
		if wnoAll {
			cfg.ProcessFlags([]string{"-Wno-all"})
		}
		// Explicit -W/-F flags override both
		cfg.ApplyFlagGroups(warningFlags, featureFlags)

		if len(args) > 1 {
			return fatal("only one input file may be given, got %d", len(args))
		}

		name, in := "<stdin>", stdin
		if len(args) == 1 && args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return fatal("could not open '%s': %v", args[0], err)
			}
			defer f.Close()
			name, in = args[0], f
		}

		out := stdout
		var bw *bufio.Writer
		if outFile != "" {
			f, err := os.Create(outFile)
			if err != nil {
				return fatal("could not create '%s': %v", outFile, err)
			}
			defer f.Close()
			bw = bufio.NewWriter(f)
			out = bw
		}

		opts := options{format: format, report: report.Options{Tokens: !noTokens, Tables: !noTables}}
		sum, err := run(name, in, out, stderr, cfg, opts)
		if err == nil && bw != nil {
			err = bw.Flush()
		}
		if err != nil {
			return fatal("%v", err)
		}
		if cfg.IsFeatureEnabled(config.FeatStrict) && sum.Errors > 0 {
			exitCode = 2
		}
		return nil
	}

	if err := app.Run(arguments); err != nil {
		if errors.Is(err, cli.ErrHelp) {
			return 0
		}
		return 1
	}
	return exitCode
}

// errFatal stops the action once a fatal diagnostic has been printed.
var errFatal = errors.New("fatal")

type options struct {
	format string
	report report.Options
}

// run scans all of in and writes the report for it to out. Diagnostics go to
// diagOut. The returned error is an I/O failure, never a scan error.
func run(name string, in io.Reader, out, diagOut io.Writer, cfg *config.Config, opts options) (report.Summary, error) {
	content, err := io.ReadAll(in)
	if err != nil {
		return report.Summary{}, fmt.Errorf("could not read '%s': %w", name, err)
	}
	src := util.SourceFileRecord{Name: name, Content: util.DecodeSource(content)}

	rep, err := report.New(opts.format, out, src, opts.report)
	if err != nil {
		return report.Summary{}, err
	}

	diag := util.NewDiagnostics(diagOut, cfg)
	diag.SetSource(src)
	st := scanner.NewState(src.Content, cfg, diag)
	if err := st.Run(rep.Token); err != nil {
		return report.Summary{}, fmt.Errorf("writing report: %w", err)
	}

	sum := report.Summary{
		Symbols:   st.Symbols,
		Constants: st.Constants,
		Errors:    st.ErrorCount(),
		Warnings:  st.WarningCount(),
	}
	if err := rep.Finish(sum); err != nil {
		return sum, fmt.Errorf("writing report: %w", err)
	}
	return sum, nil
}
