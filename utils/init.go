package utils

import (
	"flag"
	"log"
)

type options struct {
	config       string
	task         string
	outputFormat string
	output       string
	workers      int
	noColorize   bool
	verbose      bool
	httpDebug    bool
}

const (
	_POINTS_TO = iota
	_DOT
	_CHECK
)

var task = []struct{ flag, explanation string }{{
	"points-to",
	"Solve the problem and print all points-to sets and query answers",
}, {
	"dot",
	"Solve the problem and render the live part of the points-to graph",
}, {
	"check",
	"Load the problem without solving it",
}}

var opts = &options{}

type optInterface struct{}

type taskInterface struct{}

func Opts() optInterface {
	return optInterface{}
}

func (optInterface) Config() string {
	return opts.config
}
func (optInterface) OutputFormat() string {
	return opts.outputFormat
}
func (optInterface) Output() string {
	return opts.output
}
func (optInterface) Workers() int {
	return opts.workers
}
func (optInterface) NoColorize() bool {
	return opts.noColorize
}
func (optInterface) Verbose() bool {
	return opts.verbose
}
func (optInterface) HttpDebug() bool {
	return opts.httpDebug
}
func (optInterface) Task() taskInterface {
	return taskInterface{}
}
func (taskInterface) IsPointsTo() bool {
	return opts.task == task[_POINTS_TO].flag
}
func (taskInterface) IsDot() bool {
	return opts.task == task[_DOT].flag
}
func (taskInterface) IsCheck() bool {
	return opts.task == task[_CHECK].flag
}

func init() {
	taskFlag := "\n"
	for _, task := range task {
		taskFlag += task.flag + " -- " + task.explanation + "\n"
	}
	taskFlag += "\n"

	flag.StringVar(&(opts.config), "config", "", "YAML configuration file. Defaults are used if not provided.")
	flag.StringVar(&(opts.task), "task", task[_POINTS_TO].flag, "Set the task to do during execution. Options:"+taskFlag)
	flag.StringVar(&(opts.outputFormat), "format", "svg", "output file format [svg | png | jpg | ...]")
	flag.StringVar(&(opts.output), "o", "points-to", "output file name for -task=dot, without extension")
	flag.IntVar(&(opts.workers), "workers", 0, "number of worker goroutines; overrides the configuration if positive")
	flag.BoolVar(&(opts.noColorize), "no-colorize", false, "Disable pretty printer colorization")
	flag.BoolVar(&(opts.verbose), "verbose", false, "enable verbose output")
	flag.BoolVar(&(opts.httpDebug), "http-debug", false, "Start an http/pprof server for debugging")

	// Set up logging
	log.SetFlags(log.Ltime | log.Lshortfile)
}

func ParseArgs() {
	// Calling flag.Parse in init messes up unit tests.
	// See https://stackoverflow.com/questions/60235896/flag-provided-but-not-defined-test-v
	flag.Parse()

	validTask := false
	for _, task := range task {
		if task.flag == opts.task {
			validTask = true
			break
		}
	}

	if !validTask {
		log.Fatalf("Value \"%s\" is not valid for -task", opts.task)
	}

	if Opts().Task().IsDot() {
		opts.noColorize = true
	}
	SetNoColorize(opts.noColorize)
}

func (optInterface) OnVerbose(do func()) {
	if Opts().Verbose() {
		do()
	}
}
