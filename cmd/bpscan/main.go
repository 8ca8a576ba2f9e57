// Command bpscan is a thin CLI driver over the buildpal library: it
// builds a PreprocessingContext from flags, runs one scan with
// internal/refpp, and prints the header set and cache stats.
//
// Grounded on mutagen-io/mutagen's cobra-based command structure
// (cmd/mutagen/*.go: a package-level Command plus an init() wiring
// flags to a config struct) for the flag/command shape, and
// VKCOM-nocc/cmd/nocc-daemon/main.go for the "print to stderr and exit
// non-zero on failure" top-level error handling.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/buildpal-oss/buildpal"
)

var rootConfiguration struct {
	includePaths       []string
	systemIncludePaths []string
	forcedIncludes     []string
	macros             []string
	ignoreGlobs        []string
	msMode             bool
	msExt              bool
	watch              bool
}

var rootCommand = &cobra.Command{
	Use:          "bpscan <source-file>",
	Short:        "Scan a C/C++ source file and print its transitive header set",
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE:         runScan,
}

func init() {
	flags := rootCommand.Flags()
	flags.StringArrayVarP(&rootConfiguration.includePaths, "include", "I", nil, "add a user include search directory (repeatable)")
	flags.StringArrayVar(&rootConfiguration.systemIncludePaths, "isystem", nil, "add a system include search directory (repeatable)")
	flags.StringArrayVar(&rootConfiguration.forcedIncludes, "include-file", nil, "force-include a header before the main file (repeatable)")
	flags.StringArrayVarP(&rootConfiguration.macros, "define", "D", nil, "predefine NAME=VALUE or NAME (repeatable)")
	flags.StringArrayVar(&rootConfiguration.ignoreGlobs, "ignore", nil, "doublestar glob of headers to omit from output (repeatable)")
	flags.BoolVar(&rootConfiguration.msMode, "ms-mode", false, "enable MS-specific language semantics")
	flags.BoolVar(&rootConfiguration.msExt, "ms-ext", false, "enable MS extensions")
	flags.BoolVarP(&rootConfiguration.watch, "watch", "w", false, "re-scan whenever the source file or an include directory changes")
}

func buildContext() *buildpal.PreprocessingContext {
	pctx := buildpal.NewPreprocessingContext()
	for _, p := range rootConfiguration.includePaths {
		pctx.AddIncludePath(p, false)
	}
	for _, p := range rootConfiguration.systemIncludePaths {
		pctx.AddIncludePath(p, true)
	}
	for _, p := range rootConfiguration.forcedIncludes {
		pctx.AddForcedInclude(p)
	}
	for _, m := range rootConfiguration.macros {
		name, value := splitMacroFlag(m)
		pctx.AddMacro(name, value)
	}
	if len(rootConfiguration.ignoreGlobs) > 0 {
		pctx.IgnoreHeaders(rootConfiguration.ignoreGlobs...)
	}
	return pctx
}

func splitMacroFlag(spec string) (name, value string) {
	for i := 0; i < len(spec); i++ {
		if spec[i] == '=' {
			return spec[:i], spec[i+1:]
		}
	}
	return spec, "1"
}

func runScan(cmd *cobra.Command, args []string) error {
	sourcePath := args[0]

	cache := buildpal.NewCache()
	preprocessor := cache.NewPreprocessor()
	preprocessor.SetLanguageFlag(buildpal.FlagMSMode, rootConfiguration.msMode)
	preprocessor.SetLanguageFlag(buildpal.FlagMSExt, rootConfiguration.msExt)

	pctx := buildContext()

	started := time.Now()
	result, err := preprocessor.Scan(context.Background(), pctx, sourcePath)
	if err != nil {
		return errors.Wrap(err, "scan failed")
	}
	elapsed := time.Since(started)

	printResult(result)
	printStats(cache.Stats(), elapsed)

	if rootConfiguration.watch {
		return watchAndRescan(cache, preprocessor, pctx, sourcePath)
	}
	return nil
}

func printResult(result buildpal.ScanResult) {
	headerCount := 0
	for _, group := range result.Groups {
		label := "user"
		if group.IsSystem {
			label = "system"
		}
		fmt.Printf("%s %s (%s)\n", color.CyanString("dir"), group.Dir, label)
		for _, h := range group.Headers {
			relative := ""
			if h.IsRelative {
				relative = color.YellowString(" [relative]")
			}
			fmt.Printf("  %s %s%s\n", color.GreenString("+"), h.Name, relative)
			headerCount++
		}
	}
	if len(result.Missing) > 0 {
		fmt.Println(color.RedString("missing:"))
		for _, name := range result.Missing {
			fmt.Printf("  %s %s\n", color.RedString("!"), name)
		}
	}
	fmt.Printf("%s headers across %s directories\n",
		humanize.Comma(int64(headerCount)), humanize.Comma(int64(len(result.Groups))))
}

func printStats(stats buildpal.CacheStats, elapsed time.Duration) {
	fmt.Printf("content cache: %s hits / %s misses\n",
		humanize.Comma(stats.Content.Hits), humanize.Comma(stats.Content.Misses))
	fmt.Printf("result cache:  %s hits / %s misses\n",
		humanize.Comma(stats.Result.Hits), humanize.Comma(stats.Result.Misses))
	fmt.Printf("elapsed: %s\n", elapsed)
}

func main() {
	if err := rootCommand.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("bpscan:"), err)
		os.Exit(1)
	}
}
