package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sells-group/recall-cli/internal/progress"
)

var scanCmd = &cobra.Command{
	Use:   "scan <spreadsheet.xlsx>",
	Short: "Scan a fleet spreadsheet for open recalls",
	Long:  "Reads the spreadsheet, looks up every VIN against the recall portal, resolves EA numbers for each unique recall, and writes the report workbook.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		sourcePath := args[0]

		if sheet, _ := cmd.Flags().GetString("sheet"); sheet != "" {
			cfg.Scan.SheetName = sheet
		}
		if column, _ := cmd.Flags().GetString("column"); column != "" {
			cfg.Scan.VINColumn = column
		}
		if outDir, _ := cmd.Flags().GetString("output-dir"); outDir != "" {
			cfg.Scan.OutputDir = outDir
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		p := newPipeline(st)
		run, broker, err := p.NewRun(ctx, filepath.Base(sourcePath))
		if err != nil {
			return err
		}

		ch, cancel := broker.Subscribe()
		defer cancel()
		go func() {
			for ev := range ch {
				switch ev.Kind {
				case progress.KindProgress:
					fmt.Fprintf(os.Stderr, "[%3d%%] %s\n", ev.Percent, ev.Message)
				case progress.KindError:
					fmt.Fprintf(os.Stderr, "error: %s\n", ev.Message)
				}
			}
		}()

		result, err := p.Execute(ctx, run, broker, sourcePath)
		if err != nil {
			return err
		}

		fmt.Printf("Run %s complete\n", run.ID)
		fmt.Printf("  VINs:           %d (%d invalid rows)\n", result.VINs, result.InvalidRows)
		fmt.Printf("  Lookups:        %d succeeded, %d failed\n", result.Succeeded, result.Failed)
		fmt.Printf("  Unique recalls: %d\n", result.UniqueRecalls)
		if result.EASkipped {
			fmt.Println("  EA resolution:  skipped (registry auth not established)")
		} else {
			fmt.Printf("  EA numbers:     %d resolved\n", result.ResolvedEAs)
		}
		if result.ReportPath != "" {
			fmt.Printf("  Report:         %s\n", result.ReportPath)
		}
		return nil
	},
}

func init() {
	scanCmd.Flags().String("sheet", "", "worksheet name (default: first sheet)")
	scanCmd.Flags().String("column", "", "VIN column letter, e.g. B (default: auto-detect)")
	scanCmd.Flags().String("output-dir", "", "report output directory")
	rootCmd.AddCommand(scanCmd)
}
