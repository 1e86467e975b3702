package cmd

import (
	"os"

	"github.com/ComedicChimera/olive"

	"quillc/report"
)

// Execute is the main entry point for the `quillc` CLI utility.
func Execute() {
	// set up the argument parser and all its commands and arguments
	cli := olive.NewCLI("quillc", "quillc generates native-ready LLVM modules from linked Quill programs", true)
	logLvlArg := cli.AddSelectorArg("loglevel", "ll", "the log level", false, []string{"silent", "error", "warn", "verbose"})
	logLvlArg.SetDefaultValue("verbose")

	buildCmd := cli.AddSubcommand("build", "generate code for a linked module", true)
	buildCmd.AddPrimaryArg("module-path", "the path to the module to build", true)
	buildCmd.AddStringArg("profile", "p", "the name of the profile to build with", false)

	cli.AddSubcommand("version", "print the quillc version", false)

	// run the argument parser
	result, err := olive.ParseArgs(cli, os.Args)
	if err != nil {
		report.InitReporter(report.LogLevelVerbose)
		report.ReportFatal(err.Error())
	}

	// initialize the reporter before any command runs
	report.InitReporter(logLevelFromName(result.Arguments["loglevel"].(string)))

	// process the inputed command line
	subcmdName, subResult, _ := result.Subcommand()
	switch subcmdName {
	case "build":
		execBuildCommand(subResult)
	case "version":
		report.DisplayInfoMessage("Quill Version", report.QuillVersion)
	}
}

// logLevelFromName converts a log level argument into its enumerated value.
func logLevelFromName(name string) int {
	switch name {
	case "silent":
		return report.LogLevelSilent
	case "error":
		return report.LogLevelError
	case "warn":
		return report.LogLevelWarn
	default:
		return report.LogLevelVerbose
	}
}

// execBuildCommand executes the build subcommand and handles all its errors.
func execBuildCommand(result *olive.ArgParseResult) {
	// get the primary argument: the module root path
	rootPath, _ := result.PrimaryArg()

	// get the selected profile if the user named one
	profileName := ""
	if profArg, ok := result.Arguments["profile"]; ok {
		profileName = profArg.(string)
	}

	// create the compiler and run generation
	c := NewCompiler(rootPath, profileName)
	c.LoadBundle()
	c.Generate()
}
