package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chrissnell/ashdetect/pkg/compare"
	"github.com/chrissnell/ashdetect/pkg/grid"
	"github.com/chrissnell/ashdetect/pkg/product"
)

func main() {
	refPath := flag.String("ref", "", "Reference product")
	testPath := flag.String("test", "", "Test product")
	refRaster := flag.Bool("ref-raster", false, "Treat -ref as a bare label raster from a legacy product instead of an ashdetect product")
	flag.Parse()

	if *refPath == "" || *testPath == "" {
		fmt.Fprintln(os.Stderr, "both -ref and -test are required")
		os.Exit(2)
	}

	checkTimestamps(*refPath, *testPath)

	var ref grid.Labels
	if *refRaster {
		f, err := product.ReadField(*refPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading reference: %v\n", err)
			os.Exit(1)
		}
		if ref, err = compare.LabelsFromReference(f); err != nil {
			fmt.Fprintf(os.Stderr, "Error converting reference: %v\n", err)
			os.Exit(1)
		}
	} else {
		res, err := product.ReadResult(*refPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading reference: %v\n", err)
			os.Exit(1)
		}
		ref = res.Labels
	}

	test, err := product.ReadResult(*testPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading test product: %v\n", err)
		os.Exit(1)
	}

	report, err := compare.Compare(ref, test.Labels)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error comparing products: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Reference: %s\n", filepath.Base(*refPath))
	fmt.Printf("Test:      %s\n\n", filepath.Base(*testPath))
	if err := report.WriteText(os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing report: %v\n", err)
		os.Exit(1)
	}
}

// checkTimestamps warns when the YYYYjjjHHMM stamps embedded in the two file
// names disagree. Names without a stamp are not checked.
func checkTimestamps(refPath, testPath string) {
	refTS, ok1 := compare.ExtractTimestamp(filepath.Base(refPath))
	testTS, ok2 := compare.ExtractTimestamp(filepath.Base(testPath))
	if !ok1 || !ok2 || refTS == testTS {
		return
	}
	fmt.Fprintf(os.Stderr, "Warning: timestamps differ (ref %s, test %s)", refTS, testTS)
	if rt, err := compare.ParseTimestamp(refTS); err == nil {
		if tt, err := compare.ParseTimestamp(testTS); err == nil {
			fmt.Fprintf(os.Stderr, ", %v apart", tt.Sub(rt))
		}
	}
	fmt.Fprintln(os.Stderr)
}
