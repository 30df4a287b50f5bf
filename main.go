package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/cs-au-dk/incpta/analysis/config"
	"github.com/cs-au-dk/incpta/analysis/problem"
	"github.com/cs-au-dk/incpta/analysis/pta"
	"github.com/cs-au-dk/incpta/utils"

	"github.com/fatih/color"

	"net/http"
	_ "net/http/pprof"
)

var (
	opts = utils.Opts()
	task = opts.Task()
)

func loadConfig() *config.Config {
	cfg := config.Default()
	if path := opts.Config(); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			log.Fatalln(err)
		}
	}
	if opts.Workers() > 0 {
		cfg.Workers = opts.Workers()
	}
	if opts.NoColorize() {
		cfg.NoColorize = true
	}
	if opts.Verbose() && cfg.LogLevel < int(config.DebugLevel) {
		cfg.LogLevel = int(config.DebugLevel)
	}
	return cfg
}

func main() {
	utils.ParseArgs()
	path, err := utils.MakePath()
	if err != nil {
		log.Fatalln(err)
	}

	if opts.HttpDebug() {
		go func() {
			log.Println(http.ListenAndServe("localhost:6060", nil))
		}()
	}

	cfg := loadConfig()
	logger := config.NewLogGroup(cfg)

	prob, err := problem.Load(path)
	if err != nil {
		log.Fatalln(err)
	}

	a := pta.New(cfg, logger)
	inst, err := prob.Build(a)
	if err != nil {
		log.Fatalln(err)
	}
	if task.IsCheck() {
		fmt.Println(color.GreenString("ok"), path)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	start := time.Now()
	if err := a.Solve(ctx); err != nil {
		log.Fatalln("Solving failed:", err)
	}
	logger.Infof("solved %s in %v\n", path, time.Since(start))

	opts.OnVerbose(func() {
		for member, rep := range inst.Collapsed() {
			fmt.Printf("%s collapsed into %s\n", member, rep)
		}
	})

	switch {
	case task.IsPointsTo():
		inst.Report(os.Stdout)
	case task.IsDot():
		out, err := a.Graph().Render(opts.Output(), opts.OutputFormat())
		if err != nil {
			log.Fatalln("Rendering failed:", err)
		}
		fmt.Println("Graph written to", out)
	}
}
