// Command replay prints aggregate stats from a telemetry database
// recorded by cmd/server.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	telemetrydb "hordesim.ai/internal/persistence/telemetry"
)

func main() {
	var dbPath = flag.String("db", "./data/telemetry.db", "path to telemetry.db")
	flag.Parse()

	logger := log.New(os.Stderr, "[replay] ", log.LstdFlags)

	sum, err := telemetrydb.Summarize(*dbPath)
	if err != nil {
		logger.Fatalf("summarize %s: %v", *dbPath, err)
	}

	fmt.Printf("ticks:            %d\n", sum.Ticks)
	fmt.Printf("agents:           %d\n", sum.Agents)
	fmt.Printf("avg step ms:      %.3f\n", sum.AvgStepMS)
	fmt.Printf("max step ms:      %.3f\n", sum.MaxStepMS)
	fmt.Printf("repaths total:    %d\n", sum.TotalRepaths)
	fmt.Printf("los checks total: %d\n", sum.TotalLOSChecks)
	fmt.Printf("los checks max:   %d\n", sum.MaxLOSChecks)
	fmt.Printf("direct chases:    %d\n", sum.DirectChase)
}
