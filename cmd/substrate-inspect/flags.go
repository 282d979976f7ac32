package main

import (
	"time"

	flag "github.com/spf13/pflag"
)

type options struct {
	backingFD   int
	configPath  string
	printConfig bool
	writeConfig string
	watch       bool
	interval    time.Duration
	json        bool
	version     bool
}

func parseFlags(args []string) *options {
	fs := flag.NewFlagSet("substrate-inspect", flag.ExitOnError)

	opts := &options{}
	fs.IntVar(&opts.backingFD, "backing-fd", -1, "inherited file descriptor of the region's backing object")
	fs.StringVar(&opts.configPath, "config", "", "explicit config file path (defaults to layered lookup)")
	fs.BoolVar(&opts.printConfig, "print-config", false, "print the resolved config and exit")
	fs.StringVar(&opts.writeConfig, "write-config", "", "atomically write the resolved config to this path and exit")
	fs.BoolVar(&opts.watch, "watch", false, "poll and reprint the snapshot every --interval")
	fs.DurationVar(&opts.interval, "interval", 2*time.Second, "poll interval in watch mode")
	fs.BoolVar(&opts.json, "json", false, "print the snapshot as JSON")
	fs.BoolVar(&opts.version, "version", false, "print the binary version and exit")

	_ = fs.Parse(args)
	return opts
}
