// Command decisionstats summarizes recorded decision files with DuckDB.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"text/tabwriter"
)

func main() {
	dataDirs := flag.String("data-dirs", "data/decisions", "Comma-separated directories containing decision parquet files")
	sessionID := flag.String("session", "", "Only summarize this session")
	flag.Parse()

	roots := parseDataRoots(*dataDirs)
	files, err := findParquetFilesMulti(roots)
	if err != nil {
		log.Fatalf("scan data dirs: %v", err)
	}
	if len(files) == 0 {
		log.Fatalf("no parquet files under %s", strings.Join(roots, ","))
	}
	log.Printf("Reading %d decision files", len(files))

	db, err := openDuckDB(files)
	if err != nil {
		log.Fatalf("open duckdb: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	summaries, err := querySessionSummaries(ctx, db, *sessionID)
	if err != nil {
		log.Fatalf("query sessions: %v", err)
	}
	commands, err := queryCounts(ctx, db, "command", *sessionID)
	if err != nil {
		log.Fatalf("query commands: %v", err)
	}
	stages, err := queryCounts(ctx, db, "stage", *sessionID)
	if err != nil {
		log.Fatalf("query stages: %v", err)
	}

	printReport(os.Stdout, summaries, commands, stages)
}

func parseDataRoots(s string) []string {
	var roots []string
	for _, r := range strings.Split(s, ",") {
		if r = strings.TrimSpace(r); r != "" {
			roots = append(roots, r)
		}
	}
	return roots
}

func printReport(w io.Writer, summaries []SessionSummary, commands, stages []Count) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SESSION\tCYCLES\tDISPATCHED\tACCEPTED\tASSUMED\tMEAN SCORE\tMAX AGG HEIGHT\tMAX HOLES")
	for _, s := range summaries {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%.3f\t%d\t%d\n",
			s.SessionID, s.Cycles, s.Dispatched, s.Accepted, s.Assumed, s.MeanScore, s.MaxAggregateHeight, s.MaxHoles)
	}
	tw.Flush()

	printCounts(w, "Commands", commands)
	printCounts(w, "Stages", stages)
}

func printCounts(w io.Writer, title string, counts []Count) {
	fmt.Fprintf(w, "\n%s:\n", title)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, c := range counts {
		fmt.Fprintf(tw, "  %s\t%s\t%d\n", c.SessionID, c.Key, c.N)
	}
	tw.Flush()
}
