// Package exporter writes tables to CSV and XLSX.
//
// WriteCSV and WriteXLSX encode to any io.Writer, which the HTTP layer uses
// for downloads. Writer resolves file names against the configured export
// directory for the command line tools.
//
// Example usage:
//
//	w := exporter.NewWriter(cfg.Paths.ExportDir, logger)
//	path, err := w.WriteCSVFile("combined.csv", t, exporter.CSVOptions{BOMPrefix: true})
package exporter
