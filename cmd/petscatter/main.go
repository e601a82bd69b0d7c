package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"petscatter/pkg/config"
	"petscatter/pkg/geometry"
	"petscatter/pkg/scatter"
)

func main() {
	// Parse command line arguments
	configPath := flag.String("config", "", "Path to a YAML scanner configuration (defaults used if empty)")
	writeConfig := flag.String("write-config", "", "Write the effective configuration to this path and exit")
	ringsArg := flag.String("rings", "", "Comma-separated scatter ring indices (default set used if empty)")
	knCSV := flag.String("kn-csv", "", "Dump the Klein-Nishina lookup table to this CSV path")
	flag.Parse()

	fmt.Println("================================")
	fmt.Println("PETSCATTER - VOXEL-DRIVEN SCATTER MODELLING LOOKUP TABLES")
	fmt.Println("================================")

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if *writeConfig != "" {
		if err := config.SaveConfig(cfg, *writeConfig); err != nil {
			log.Fatalf("Failed to write configuration: %v", err)
		}
		fmt.Printf("Configuration written to: %s\n", *writeConfig)
		return
	}

	var rings []int
	if *ringsArg != "" {
		for _, tok := range strings.Split(*ringsArg, ",") {
			var r int
			if _, err := fmt.Sscanf(strings.TrimSpace(tok), "%d", &r); err != nil {
				log.Fatalf("Invalid ring index %q: %v", tok, err)
			}
			rings = append(rings, r)
		}
		if err := geometry.ValidateScatterRings(rings, cfg.Scanner.NRings); err != nil {
			log.Fatalf("Invalid scatter ring set: %v", err)
		}
	}

	fmt.Printf("Scanner: %d rings, %d crystals/ring, %dx%d sinograms, span %d\n",
		cfg.Scanner.NRings, cfg.Scanner.NCrystals, cfg.Scanner.NAngles,
		cfg.Scanner.NBins, cfg.Acquisition.Span)

	fmt.Println("Building scatter lookup tables...")
	startTime := time.Now()

	tbl := geometry.BuildCrystalTable(cfg.Scanner.NCrystals, cfg.Scanner.RingRadius)
	lut, err := scatter.BuildScatterLUT(cfg, tbl, rings)
	if err != nil {
		log.Fatalf("LUT construction failed: %v", err)
	}

	fmt.Printf("\nLookup tables built in %.3f seconds\n", time.Since(startTime).Seconds())
	fmt.Printf("Scatter crystals: %d of %d\n", lut.NScatterCrystals(), cfg.Scanner.NCrystals)
	fmt.Printf("Scatter rings: %d of %d %v\n", lut.NScatterRings(), cfg.Scanner.NRings, lut.Rings)
	fmt.Printf("Span-1 planes: %d\n", lut.Span1.NPlanes())
	fmt.Printf("Rebinned segments: %d\n", cfg.NSegments0())

	exact, lin, bilin := 0, 0, 0
	for _, row := range lut.Axial.Rows {
		switch row.Kind {
		case geometry.Exact:
			exact++
		case geometry.Bilinear:
			bilin++
		default:
			lin++
		}
	}
	fmt.Printf("Axial interpolation: %d exact, %d linear, %d bilinear ring pairs\n",
		exact, lin, bilin)

	fmt.Printf("Klein-Nishina table: %d cosine bins over [%g, 1], peak probability %.3e\n",
		cfg.Scatter.NCosBins, cfg.Scatter.CosUpsMax, maxOf(lut.KN.Prob))

	if *knCSV != "" {
		if err := dumpKleinNishina(lut, cfg, *knCSV); err != nil {
			log.Fatalf("Failed to write Klein-Nishina CSV: %v", err)
		}
		fmt.Printf("Klein-Nishina table written to: %s\n", *knCSV)
	}
}

func maxOf(xs []float64) float64 {
	m := 0.0
	for _, x := range xs {
		if x > m {
			m = x
		}
	}
	return m
}

func dumpKleinNishina(lut *scatter.ScatterLUT, cfg *config.Config, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := fmt.Fprintln(f, "cos_theta,probability,energy_correction"); err != nil {
		return err
	}
	for i := range lut.KN.Prob {
		cos := cfg.Scatter.CosUpsMax + float64(i)*cfg.CosStep()
		if _, err := fmt.Fprintf(f, "%.9f,%.9e,%.9e\n",
			cos, lut.KN.Prob[i], lut.KN.Correction[i]); err != nil {
			return err
		}
	}
	return nil
}
