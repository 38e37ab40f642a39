package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/taxroll-cli/internal/dataset"
	"github.com/sells-group/taxroll-cli/internal/model"
	"github.com/sells-group/taxroll-cli/internal/pipeline"
	"github.com/sells-group/taxroll-cli/internal/taxclass"
)

var (
	processOutput    string
	processUser      string
	processOffline   bool
	processNoArchive bool
)

var processCmd = &cobra.Command{
	Use:   "process <input-file>",
	Short: "Process a tax export file",
	Long:  "Reads a CSV or XLSX tax export, filters by property class, resolves addresses, removes duplicates, and writes the processed report plus a YAML run summary.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		inputPath := args[0]

		table, err := dataset.Read(inputPath)
		if err != nil {
			return eris.Wrapf(err, "process: read %s", inputPath)
		}

		engine, _, err := initEngine(processOffline)
		if err != nil {
			return err
		}

		user := processUser
		if user == "" {
			user = cfg.User
		}

		p := pipeline.New(
			taxclass.NewFilter(cfg.Filter.Classes),
			engine,
			func(msg string) { fmt.Fprintln(os.Stderr, msg) },
		)

		run := &model.Run{
			User:      user,
			InputFile: inputPath,
			CreatedAt: time.Now().UTC(),
		}

		result, err := p.Run(ctx, table)
		switch {
		case eris.Is(err, pipeline.ErrEmptyResult):
			run.Status = model.RunStatusEmpty
			archiveRun(ctx, run)
			fmt.Fprintln(os.Stderr, "No records matched the tax class whitelist; nothing to write.")
			return nil
		case err != nil:
			run.Status = model.RunStatusFailed
			archiveRun(ctx, run)
			return err
		}

		outputPath := processOutput
		if outputPath == "" {
			outputPath = defaultOutputPath(inputPath)
		}
		if err := result.Output.Write(outputPath); err != nil {
			return err
		}

		summary := pipeline.Summary{
			User:        user,
			InputFile:   inputPath,
			OutputFile:  outputPath,
			GeneratedAt: time.Now().UTC(),
			Stats:       result.Stats,
		}
		if err := pipeline.WriteSummary(summaryPath(outputPath), summary); err != nil {
			return err
		}

		run.Status = model.RunStatusComplete
		run.Stats = result.Stats
		if csvData, err := result.Output.CSV(); err == nil {
			run.OutputCSV = string(csvData)
		}
		archiveRun(ctx, run)

		fmt.Fprintf(os.Stderr, "Wrote %d records to %s\n", result.Stats.FinalRecords, outputPath)
		return nil
	},
}

// archiveRun saves the run record. Archival is best effort; a store
// failure must not discard an otherwise successful run.
func archiveRun(ctx context.Context, run *model.Run) {
	if processNoArchive {
		return
	}
	run.FinishedAt = time.Now().UTC()

	st, err := initStore(ctx)
	if err != nil {
		zap.L().Warn("run archive unavailable", zap.Error(err))
		return
	}
	defer st.Close() //nolint:errcheck

	if err := st.SaveRun(ctx, run); err != nil {
		zap.L().Warn("run archive failed", zap.Error(err))
		return
	}
	zap.L().Info("run archived", zap.String("id", run.ID), zap.String("status", string(run.Status)))
}

// defaultOutputPath derives the report path from the input path,
// keeping the input's format.
func defaultOutputPath(inputPath string) string {
	ext := filepath.Ext(inputPath)
	base := strings.TrimSuffix(inputPath, ext)
	if !strings.EqualFold(ext, ".xlsx") {
		ext = ".csv"
	}
	return base + "_processed" + ext
}

func summaryPath(outputPath string) string {
	return strings.TrimSuffix(outputPath, filepath.Ext(outputPath)) + "_summary.yaml"
}

func init() {
	processCmd.Flags().StringVarP(&processOutput, "output", "o", "", "output file path (default: <input>_processed.<ext>)")
	processCmd.Flags().StringVar(&processUser, "user", "", "user recorded in the run archive (default from config)")
	processCmd.Flags().BoolVar(&processOffline, "offline", false, "skip the geocoding fallback")
	processCmd.Flags().BoolVar(&processNoArchive, "no-archive", false, "do not record this run in the archive")
	rootCmd.AddCommand(processCmd)
}
