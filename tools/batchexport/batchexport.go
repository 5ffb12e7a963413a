package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"

	"github.com/red4tools/meshexport/config"
	"github.com/red4tools/meshexport/export"
	"github.com/red4tools/meshexport/red4"
	"github.com/red4tools/meshexport/status"
	"github.com/red4tools/meshexport/utils"
	"github.com/red4tools/meshexport/vfs"
)

func main() {
	var rigs utils.StringList
	var dir, out, configPath, statusAddr string
	var workers int
	flag.StringVar(&dir, "dir", "", "Directory with mesh containers")
	flag.StringVar(&out, "out", "", "Output directory")
	flag.Var(&rigs, "rig", "Rig container of -dir bound to every mesh, repeat to union")
	flag.StringVar(&configPath, "config", "", "Path to yaml config")
	flag.IntVar(&workers, "workers", 0, "Parallel exports, 0 uses the config value")
	flag.StringVar(&statusAddr, "status", "", "Serve progress on ws://<addr>/ws/status")
	flag.Parse()

	if dir == "" || out == "" {
		flag.PrintDefaults()
		return
	}

	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			log.Fatal(err)
		}
	}
	if workers > 0 {
		cfg.Workers = workers
	}
	config.Set(cfg)

	e, err := export.NewFromConfig(&red4.SidecarParser{}, cfg)
	if err != nil {
		log.Fatal(err)
	}

	if statusAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/ws/status", status.Default)
		go func() {
			log.Printf("[batch] Status on %v", statusAddr)
			if err := http.ListenAndServe(statusAddr, mux); err != nil {
				log.Printf("[batch] Status server: %v", err)
			}
		}()
	}

	jobs, err := export.JobsFromDirectory(vfs.NewDirectoryDriver(dir), out, rigs, export.OptionsFromConfig(cfg))
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	progress := export.StatusProgress(len(jobs))
	results := e.Batch(ctx, jobs, cfg.Workers, func(r export.Result) {
		progress(r)
		if r.Err == nil && r.Exported {
			log.Printf("[batch] %s", r.Job.Out)
		}
	})

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	log.Printf("[batch] %d jobs, %d failed", len(results), failed)
	if failed != 0 {
		stop()
		os.Exit(1)
	}
}
