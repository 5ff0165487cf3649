// Command summarize reads the audit CSVs of a finished run and reports how
// each trait drifted across generations.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/gocarina/gocsv"

	"github.com/pthm-cable/natsel/config"
	"github.com/pthm-cable/natsel/telemetry"
)

func main() {
	dir := flag.String("dir", "", "Run output directory (contains the audit CSVs)")
	configPath := flag.String("config", "", "Config used for the run (empty = use defaults)")
	flag.Parse()

	if *dir == "" {
		log.Fatal("--dir is required")
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	var summaries []telemetry.GenerationSummary
	if err := readCSV(filepath.Join(*dir, cfg.Output.SummaryFile), &summaries); err != nil {
		log.Fatalf("failed to read summaries: %v", err)
	}
	var details []telemetry.CreatureDetail
	if err := readCSV(filepath.Join(*dir, cfg.Output.DetailsFile), &details); err != nil {
		log.Fatalf("failed to read details: %v", err)
	}
	if len(summaries) == 0 {
		fmt.Println("no generations recorded")
		return
	}

	first, last := summaries[0], summaries[len(summaries)-1]
	fmt.Printf("%d generations, population %d -> %d\n\n",
		len(summaries), first.Initial, last.NextPopulation)

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("trait", "first", "last", "slope/gen", "r2", "selection")
	for _, tr := range Trends(summaries, details) {
		t.Row(tr.Trait,
			fmt.Sprintf("%.3f", tr.First),
			fmt.Sprintf("%.3f", tr.Last),
			fmt.Sprintf("%+.4f", tr.Slope),
			fmt.Sprintf("%.2f", tr.R2),
			fmt.Sprintf("%+.4f", tr.Selection))
	}
	fmt.Println(t)
}

func readCSV(path string, out any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return gocsv.UnmarshalFile(f, out)
}
