package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/puff-cli/internal/input"
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Convert an XLSX puff sheet into a TSV log",
	Long: `Copies the puff sheet of a workbook into a tab-separated file with
canonical column names, ready for score --input.

Examples:
  extract --input puffs.xlsx
  extract --input puffs.xlsx --sheet "Week 2" --output week2.tsv`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		inputPath, _ := cmd.Flags().GetString("input")
		outputPath, _ := cmd.Flags().GetString("output")
		sheet, _ := cmd.Flags().GetString("sheet")

		format, err := input.DetectFormat(inputPath)
		if err != nil {
			return err
		}
		if format != input.FormatXLSX {
			return eris.Errorf("extract: %s is not an XLSX workbook", inputPath)
		}
		if outputPath == "" {
			outputPath = strings.TrimSuffix(inputPath, filepath.Ext(inputPath)) + ".tsv"
		}
		if sheet == "" {
			sheet = cfg.Input.Sheet
		}

		f, err := os.Create(outputPath)
		if err != nil {
			return eris.Wrapf(err, "extract: create %s", outputPath)
		}

		n, err := input.Extract(ctx, inputPath, input.Options{
			Sheet:         sheet,
			CommentPrefix: cfg.Input.CommentPrefix,
		}, f)
		if cerr := f.Close(); err == nil && cerr != nil {
			err = eris.Wrapf(cerr, "extract: close %s", outputPath)
		}
		if err != nil {
			_ = os.Remove(outputPath)
			return err
		}

		zap.L().Info("extract: complete",
			zap.String("input", inputPath),
			zap.String("output", outputPath),
			zap.Int("rows", n),
		)
		fmt.Printf("Extracted %d rows to %s\n", n, outputPath)
		return nil
	},
}

func init() {
	extractCmd.Flags().String("input", "", "XLSX workbook to read")
	extractCmd.Flags().String("output", "", "TSV file to write (default: input name with .tsv)")
	extractCmd.Flags().String("sheet", "", "sheet name (overrides config)")
	_ = extractCmd.MarkFlagRequired("input")

	rootCmd.AddCommand(extractCmd)
}
