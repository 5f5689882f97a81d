package main

import (
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/noshowrisk/internal/evaluation"
	"github.com/zatekoja/noshowrisk/internal/infrastructure/observability"
	"github.com/zatekoja/noshowrisk/pkg/config"
)

func main() {
	reportPath := flag.String("report", "", "evaluation report path (defaults to MODEL_REPORT_PATH)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	observability.InitLogger(cfg.OTEL.ServiceName+"-evaluate", cfg.Environment, cfg.Logging)

	if *reportPath == "" {
		*reportPath = cfg.Model.ReportPath
	}

	report, err := evaluation.LoadReport(*reportPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *reportPath).Msg("Failed to load evaluation report")
	}

	fmt.Printf("Generated %s  train=%d  test=%d  accepted=%t\n\n",
		report.GeneratedAt.Format("2006-01-02 15:04"), report.TrainSamples, report.TestSamples, report.Accepted)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MODEL\tKIND\tROC-AUC\tLOG-LOSS\tSAMPLES\tBASE RATE")
	for _, m := range report.Models {
		fmt.Fprintf(w, "%s\t%s\t%.4f\t%.4f\t%d\t%.3f\n", m.Name, m.Kind, m.ROCAUC, m.LogLoss, m.Samples, m.BaseRate)
	}
	w.Flush()

	if len(report.TopImportances) > 0 {
		fmt.Println("\nTop features:")
		for i, imp := range report.TopImportances {
			fmt.Printf("%2d. %-24s %.4f\n", i+1, imp.Feature, imp.Importance)
		}
	}
	for _, reason := range report.Rejections {
		fmt.Printf("rejected: %s\n", reason)
	}
}
