// Command substrate-inspect attaches to a running region and prints a
// snapshot of its dependency-table and value-heap statistics. It does not
// touch the network: the backing file descriptor must already be open in
// this process (typically inherited via exec.Cmd.ExtraFiles from the
// master), matching spec.md §6's "connector handle" model rather than the
// teacher's HTTP-fetch inspector.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shmsubstrate/core/internal/shmregion"
	"github.com/shmsubstrate/core/pkg/configfile"
	"github.com/shmsubstrate/core/pkg/substrate"
)

var version = "dev"

func main() {
	opts := parseFlags(os.Args[1:])

	if opts.version {
		fmt.Println(version)
		return
	}

	if opts.printConfig {
		workDir, _ := os.Getwd()
		cfg, sources, err := configfile.Load(workDir, opts.configPath, os.Environ())
		if err != nil {
			fatal(err)
		}
		out, err := configfile.Format(cfg)
		if err != nil {
			fatal(err)
		}
		fmt.Println(out)
		if sources.Global != "" {
			fmt.Fprintln(os.Stderr, "global config:", sources.Global)
		}
		if sources.Project != "" {
			fmt.Fprintln(os.Stderr, "project config:", sources.Project)
		}
		return
	}

	if opts.writeConfig != "" {
		workDir, _ := os.Getwd()
		cfg, _, err := configfile.Load(workDir, opts.configPath, os.Environ())
		if err != nil {
			fatal(err)
		}
		if err := configfile.SaveFile(opts.writeConfig, cfg); err != nil {
			fatal(err)
		}
		return
	}

	region, err := attach(opts)
	if err != nil {
		fatal(err)
	}
	defer region.Close()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	if opts.watch {
		ticker := time.NewTicker(opts.interval)
		defer ticker.Stop()
		for {
			dump(region, opts)
			select {
			case <-ticker.C:
				continue
			case <-sig:
				return
			}
		}
	}

	dump(region, opts)
}

func attach(opts *options) (*substrate.Region, error) {
	workDir, _ := os.Getwd()
	fileCfg, _, err := configfile.Load(workDir, opts.configPath, os.Environ())
	if err != nil {
		return nil, err
	}

	h := substrate.Handle{
		BackingFD: opts.backingFD,
		Sizes: shmregion.Sizes{
			GlobalBytes: fileCfg.GlobalBytes,
			HeapBytes:   fileCfg.HeapBytes,
			DepLog2:     fileCfg.DepLog2,
			HashLog2:    fileCfg.HashLog2,
		},
	}
	return substrate.Attach(h, false)
}

type snapshot struct {
	DepEdges    uint64 `json:"dep_edges_total"`
	ShouldGC    bool   `json:"should_collect"`
	BackingPath string `json:"backing_path,omitempty"`
}

func dump(region *substrate.Region, opts *options) {
	snap := snapshot{
		DepEdges:    region.DepCount(),
		ShouldGC:    region.ShouldCollect(false),
		BackingPath: region.BackingPath(),
	}

	if opts.json {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(snap)
		return
	}
	fmt.Printf("Dep edges:     %d\n", snap.DepEdges)
	fmt.Printf("Should collect:%v\n", snap.ShouldGC)
	if snap.BackingPath != "" {
		fmt.Printf("Backing path:  %s\n", snap.BackingPath)
	}
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "substrate-inspect:", err)
	os.Exit(1)
}
