package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chrissnell/ashdetect/internal/app"
	"github.com/chrissnell/ashdetect/internal/constants"
	"github.com/chrissnell/ashdetect/internal/log"
	"github.com/chrissnell/ashdetect/pkg/ashclass"
	"github.com/chrissnell/ashdetect/pkg/config"
	"github.com/chrissnell/ashdetect/pkg/grid"
)

func main() {
	cfgFile := flag.String("config", "ashdetect.yaml", "Path to the YAML configuration file")
	scenePath := flag.String("scene", "", "Scene bundle to classify (.msgpack or .json)")
	outPath := flag.String("out", "", "Where to write the classification product (.msgpack or .json)")
	serve := flag.Bool("serve", false, "Run the HTTP classification service instead of a single scene")
	debug := flag.Bool("debug", false, "Turn on debugging output")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s %s\n", constants.Product, constants.Version)
		os.Exit(0)
	}

	if !*serve && *scenePath == "" {
		fmt.Fprintln(os.Stderr, "either -scene or -serve is required; run with -h for help")
		os.Exit(2)
	}

	// Set up logging
	if err := log.Init(*debug); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	provider, err := configProvider(*cfgFile)
	if err != nil {
		log.Errorf("Failed to load configuration: %v", err)
		os.Exit(1)
	}
	defer provider.Close()

	application := app.New(provider, log.GetSugaredLogger())
	ctx := context.Background()

	if *serve {
		if err := application.Serve(ctx); err != nil {
			log.Errorf("Server error: %v", err)
			os.Exit(1)
		}
		return
	}

	res, err := application.ClassifyFile(ctx, *scenePath, *outPath)
	if err != nil {
		log.Errorf("Classification failed: %v", err)
		os.Exit(1)
	}
	for l := 0; l < ashclass.NumLabels; l++ {
		fmt.Printf("  %-22s %d\n", ashclass.LabelName(grid.Label(l))+":", res.Counts[l])
	}
}

func configProvider(cfgFile string) (config.ConfigProvider, error) {
	filename, err := filepath.Abs(cfgFile)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(filename); err != nil {
		return nil, fmt.Errorf("error reading config file. Did you pass the -config flag? Run with -h for help: %w", err)
	}
	return config.NewYAMLProvider(filename), nil
}
