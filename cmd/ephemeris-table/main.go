package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/chrissnell/ashdetect/pkg/config"
	"github.com/chrissnell/ashdetect/pkg/ephemeris"
)

func main() {
	var startStr, endStr, source string
	var step time.Duration
	flag.StringVar(&startStr, "start", "", "First tabulated instant (RFC3339, e.g. 2024-01-01T00:00:00Z)")
	flag.StringVar(&endStr, "end", "", "Last tabulated instant (RFC3339)")
	flag.DurationVar(&step, "step", time.Hour, "Sampling interval")
	flag.StringVar(&source, "source", config.EphemerisMeeus, "Sun position source: meeus or approximate")
	flag.Parse()

	start, err := time.Parse(time.RFC3339, startStr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing -start: %v\n", err)
		os.Exit(1)
	}
	end, err := time.Parse(time.RFC3339, endStr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing -end: %v\n", err)
		os.Exit(1)
	}
	if source == config.EphemerisTable {
		fmt.Fprintln(os.Stderr, "a table cannot be tabulated from another table")
		os.Exit(1)
	}

	src, err := config.EphemerisData{Source: source}.NewSource()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	tb, err := ephemeris.Tabulate(src, start, end, step)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error tabulating: %v\n", err)
		os.Exit(1)
	}
	if err := tb.WriteCSV(os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing table: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "wrote %d rows\n", tb.Len())
}
