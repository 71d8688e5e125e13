package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/recall-cli/internal/compare"
)

var compareCmd = &cobra.Command{
	Use:   "compare <report.xlsx> <reference.xlsx>",
	Short: "Find report recalls missing from a reference document",
	Long:  "Checks every recall number in a generated report against the reference document's Title column and writes a workbook of the recalls the reference never mentions.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		reportPath, referencePath := args[0], args[1]

		missing, err := compare.Run(reportPath, referencePath)
		if err != nil {
			return err
		}

		if len(missing) == 0 {
			fmt.Println("Every recall in the report is referenced.")
			return nil
		}

		outDir, _ := cmd.Flags().GetString("output-dir")
		w := compare.NewWriter()
		f, err := w.Build(missing)
		if err != nil {
			return err
		}
		path, err := w.Save(outDir, f)
		if err != nil {
			return err
		}

		fmt.Printf("%d missing recall/asset pairs written to %s\n", len(missing), path)
		return nil
	},
}

func init() {
	compareCmd.Flags().String("output-dir", ".", "output directory for the missing-recalls workbook")
	rootCmd.AddCommand(compareCmd)
}
