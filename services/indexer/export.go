package indexer

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
)

// Report describes the files written by ExportSettlements.
type Report struct {
	CSVPath     string
	ParquetPath string
	Count       int
}

// ExportSettlements writes the trades settled within [start, end) as CSV and
// Parquet files into dir. No files are written for an empty window.
func (i *Indexer) ExportSettlements(dir string, start, end time.Time) (*Report, error) {
	rows, err := i.Settlements(start, end)
	if err != nil {
		return nil, err
	}
	report := &Report{Count: len(rows)}
	if len(rows) == 0 {
		return report, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("indexer: create report dir: %w", err)
	}
	name := fmt.Sprintf("settlements_%s_%s", start.UTC().Format("20060102T150405"), end.UTC().Format("20060102T150405"))
	report.CSVPath = filepath.Join(dir, name+".csv")
	if err := writeCSV(report.CSVPath, rows); err != nil {
		return nil, err
	}
	report.ParquetPath = filepath.Join(dir, name+".parquet")
	if err := writeParquet(report.ParquetPath, rows); err != nil {
		return nil, err
	}
	i.logger.Info("indexer: wrote settlement report", "csv", report.CSVPath, "parquet", report.ParquetPath, "rows", len(rows))
	return report, nil
}

var reportHeader = []string{
	"rfq", "settlement", "maker", "taker", "base_asset", "quote_asset", "fee_asset",
	"base_amount", "quote_amount", "treasury_fee", "facilitator_fee", "facilitator", "settled_at",
}

func writeCSV(path string, rows []SettlementRecord) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("indexer: create csv: %w", err)
	}
	defer file.Close()
	w := csv.NewWriter(file)
	if err := w.Write(reportHeader); err != nil {
		return fmt.Errorf("indexer: write csv header: %w", err)
	}
	for _, row := range rows {
		record := []string{
			row.RFQ,
			row.Settlement,
			row.Maker,
			row.Taker,
			row.BaseAsset,
			row.QuoteAsset,
			row.FeeAsset,
			strconv.FormatUint(row.BaseAmount, 10),
			strconv.FormatUint(row.QuoteAmount, 10),
			strconv.FormatUint(row.TreasuryFee, 10),
			strconv.FormatUint(row.FacilitatorFee, 10),
			row.Facilitator,
			row.SettledAt.UTC().Format(time.RFC3339),
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("indexer: write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("indexer: flush csv: %w", err)
	}
	return nil
}

type parquetRow struct {
	RFQ            string `parquet:"name=rfq, type=BYTE_ARRAY, convertedtype=UTF8"`
	Settlement     string `parquet:"name=settlement, type=BYTE_ARRAY, convertedtype=UTF8"`
	Maker          string `parquet:"name=maker, type=BYTE_ARRAY, convertedtype=UTF8"`
	Taker          string `parquet:"name=taker, type=BYTE_ARRAY, convertedtype=UTF8"`
	BaseAsset      string `parquet:"name=base_asset, type=BYTE_ARRAY, convertedtype=UTF8"`
	QuoteAsset     string `parquet:"name=quote_asset, type=BYTE_ARRAY, convertedtype=UTF8"`
	FeeAsset       string `parquet:"name=fee_asset, type=BYTE_ARRAY, convertedtype=UTF8"`
	BaseAmount     int64  `parquet:"name=base_amount, type=INT64, convertedtype=UINT_64"`
	QuoteAmount    int64  `parquet:"name=quote_amount, type=INT64, convertedtype=UINT_64"`
	TreasuryFee    int64  `parquet:"name=treasury_fee, type=INT64, convertedtype=UINT_64"`
	FacilitatorFee int64  `parquet:"name=facilitator_fee, type=INT64, convertedtype=UINT_64"`
	Facilitator    string `parquet:"name=facilitator, type=BYTE_ARRAY, convertedtype=UTF8"`
	SettledAt      string `parquet:"name=settled_at, type=BYTE_ARRAY, convertedtype=UTF8"`
}

func writeParquet(path string, rows []SettlementRecord) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("indexer: create parquet: %w", err)
	}
	fw := writerfile.NewWriterFile(file)
	pw, err := writer.NewParquetWriter(fw, new(parquetRow), 1)
	if err != nil {
		file.Close()
		return fmt.Errorf("indexer: parquet schema: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, row := range rows {
		pr := &parquetRow{
			RFQ:            row.RFQ,
			Settlement:     row.Settlement,
			Maker:          row.Maker,
			Taker:          row.Taker,
			BaseAsset:      row.BaseAsset,
			QuoteAsset:     row.QuoteAsset,
			FeeAsset:       row.FeeAsset,
			BaseAmount:     int64(row.BaseAmount),
			QuoteAmount:    int64(row.QuoteAmount),
			TreasuryFee:    int64(row.TreasuryFee),
			FacilitatorFee: int64(row.FacilitatorFee),
			Facilitator:    row.Facilitator,
			SettledAt:      row.SettledAt.UTC().Format(time.RFC3339),
		}
		if err := pw.Write(pr); err != nil {
			pw.WriteStop()
			file.Close()
			return fmt.Errorf("indexer: parquet write: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		file.Close()
		return fmt.Errorf("indexer: parquet flush: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("indexer: close parquet file: %w", err)
	}
	return nil
}
