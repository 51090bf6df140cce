package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"agro-valuation/valuation-portal/valuation-portal-backend/internal/reports/export"
	"agro-valuation/valuation-portal/valuation-portal-backend/internal/valuation"
)

const formatJSON = "json"

type options struct {
	parcelPath  string
	lookupsPath string
	format      string
	outPath     string
	maxBlocks   int
	verbose     bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "valuate",
		Short: "Value an agricultural parcel offline from YAML or JSON files",
		Long: `valuate runs the block valuation engine over a parcel file and a lookups file
(age-yield curves, cost templates, cost curves) and writes the parcel result
as JSON, CSV, XLSX or PDF.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.parcelPath, "parcel", "p", "", "parcel input file (.yaml, .yml or .json)")
	cmd.Flags().StringVarP(&opts.lookupsPath, "lookups", "l", "", "lookups file (.yaml, .yml or .json)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", formatJSON, "output format: json, csv, xlsx or pdf")
	cmd.Flags().StringVarP(&opts.outPath, "out", "o", "", "output file (default stdout)")
	cmd.Flags().IntVar(&opts.maxBlocks, "max-concurrent-blocks", valuation.DefaultEngineConfig().MaxConcurrentBlocks, "blocks valued in parallel; 0 means unbounded")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging to stderr")
	_ = cmd.MarkFlagRequired("parcel")

	return cmd
}

func run(cmd *cobra.Command, opts *options) error {
	logger := zap.NewNop()
	if opts.verbose {
		if l, err := zap.NewDevelopment(); err == nil {
			logger = l
			defer logger.Sync()
		}
	}

	var parcel valuation.ParcelData
	if err := decodeFile(opts.parcelPath, &parcel); err != nil {
		return fmt.Errorf("failed to read parcel: %w", err)
	}

	lookups := &valuation.Lookups{}
	if opts.lookupsPath != "" {
		if err := decodeFile(opts.lookupsPath, lookups); err != nil {
			return fmt.Errorf("failed to read lookups: %w", err)
		}
	}

	validation := valuation.NewValidator().ValidateParcel(parcel)
	for _, w := range validation.Warnings {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s: %s\n", w.Field, w.Message)
	}
	if err := validation.Err(); err != nil {
		return err
	}

	engine := valuation.NewEngine(logger, valuation.EngineConfig{MaxConcurrentBlocks: opts.maxBlocks})
	result, err := engine.ValueParcel(cmd.Context(), parcel, lookups)
	if err != nil {
		return fmt.Errorf("failed to value parcel: %w", err)
	}

	var buf bytes.Buffer
	if err := render(&buf, opts.format, result); err != nil {
		return err
	}

	if opts.outPath == "" {
		_, err := cmd.OutOrStdout().Write(buf.Bytes())
		return err
	}
	if err := os.WriteFile(opts.outPath, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	logger.Debug("Wrote valuation report",
		zap.String("path", opts.outPath),
		zap.String("format", opts.format))
	return nil
}

func render(w io.Writer, format string, result *valuation.ParcelResult) error {
	if strings.EqualFold(strings.TrimSpace(format), formatJSON) {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	f, err := export.ParseFormat(format)
	if err != nil {
		return err
	}
	return export.Write(w, f, result)
}

// decodeFile reads JSON for .json files and YAML otherwise
func decodeFile(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		return dec.Decode(out)
	default:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(out); err != nil && err != io.EOF {
			return err
		}
		return nil
	}
}
