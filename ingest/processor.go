package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/msedata/msesync/models"
	"github.com/msedata/msesync/store"
)

const (
	batchSize   = 500
	fileWorkers = 4
	workerCount = 8
)

// csvLayouts are the date formats the scraper has emitted over time.
var csvLayouts = []string{"02.01.2006", "01/02/2006", models.DateLayout}

// Processor bulk-loads scraper CSV dumps into the record store. Rows are
// upserted on the (issuer, date) key, so re-importing the same dump is a
// no-op, and each touched issuer's watermark is advanced to its newest
// imported date once all files are done.
type Processor struct {
	records    *store.Records
	watermarks *store.Watermarks

	processedRows int64
	skippedRows   int64

	mu       sync.Mutex
	maxDates map[string]models.TradeDate
}

func NewProcessor(records *store.Records, watermarks *store.Watermarks) *Processor {
	return &Processor{
		records:    records,
		watermarks: watermarks,
		maxDates:   make(map[string]models.TradeDate),
	}
}

// ProcessDirectory imports every *.csv file under dataDir, processing files
// concurrently with a bounded number of workers.
func (p *Processor) ProcessDirectory(dataDir string) error {
	files, err := filepath.Glob(filepath.Join(dataDir, "*.csv"))
	if err != nil {
		return fmt.Errorf("failed to find CSV files: %w", err)
	}
	if len(files) == 0 {
		return fmt.Errorf("no CSV files found in directory: %s", dataDir)
	}

	logrus.Infof("Found %d CSV files to import", len(files))
	start := time.Now()

	semaphore := make(chan struct{}, fileWorkers)
	var wg sync.WaitGroup
	errChan := make(chan error, len(files))

	for _, file := range files {
		wg.Add(1)
		go func(filename string) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			if err := p.ProcessFile(filename); err != nil {
				logrus.WithError(err).Errorf("Failed to import %s", filename)
				errChan <- err
				return
			}
			logrus.Infof("Imported %s", filename)
		}(file)
	}

	wg.Wait()
	close(errChan)

	var failed int
	for range errChan {
		failed++
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed to import", failed, len(files))
	}

	if err := p.advanceWatermarks(); err != nil {
		return err
	}

	logrus.Infof("Imported %d rows (%d skipped) in %v",
		atomic.LoadInt64(&p.processedRows), atomic.LoadInt64(&p.skippedRows), time.Since(start))
	return nil
}

// ProcessFile imports one CSV file. Rows are parsed and batched by a reader
// goroutine and upserted by a pool of workers; invalid rows are skipped and
// counted, never fatal.
func (p *Processor) ProcessFile(filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.ReuseRecord = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("failed to read CSV header: %w", err)
	}
	cols, err := mapColumns(header)
	if err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(filename), err)
	}

	batchChan := make(chan []models.IssuerData, workerCount)
	errChan := make(chan error, workerCount)

	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for batch := range batchChan {
				if err := p.records.UpsertBatch(batch); err != nil {
					select {
					case errChan <- err:
					default:
					}
				}
			}
		}()
	}

	var batch []models.IssuerData
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			atomic.AddInt64(&p.skippedRows, 1)
			continue
		}

		record, err := parseRow(row, cols)
		if err != nil {
			atomic.AddInt64(&p.skippedRows, 1)
			continue
		}

		p.noteDate(record.Issuer, record.Date)
		batch = append(batch, record)
		if len(batch) >= batchSize {
			batchChan <- batch
			batch = nil
		}
	}
	if len(batch) > 0 {
		batchChan <- batch
	}

	close(batchChan)
	wg.Wait()
	close(errChan)

	if err := <-errChan; err != nil {
		return fmt.Errorf("worker error: %w", err)
	}
	return nil
}

func (p *Processor) noteDate(issuer string, date models.TradeDate) {
	atomic.AddInt64(&p.processedRows, 1)
	p.mu.Lock()
	if current, ok := p.maxDates[issuer]; !ok || date.After(current) {
		p.maxDates[issuer] = date
	}
	p.mu.Unlock()
}

func (p *Processor) advanceWatermarks() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for issuer, date := range p.maxDates {
		if err := p.watermarks.Advance(issuer, date); err != nil {
			return err
		}
	}
	return nil
}

// columns maps the scraper's CSV header names to field indexes.
type columns struct {
	date, issuer, lastTrade, max, min, avg, pctChg, volume, turnoverBest, totalTurnover int
}

func mapColumns(header []string) (columns, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}

	cols := columns{}
	required := []struct {
		name string
		dst  *int
	}{
		{"Date", &cols.date},
		{"Issuer", &cols.issuer},
		{"Last trade price", &cols.lastTrade},
		{"Max", &cols.max},
		{"Min", &cols.min},
		{"Avg. Price", &cols.avg},
		{"%chg.", &cols.pctChg},
		{"Volume", &cols.volume},
		{"Turnover in BEST in denars", &cols.turnoverBest},
		{"Total turnover in denars", &cols.totalTurnover},
	}
	for _, col := range required {
		i, ok := index[col.name]
		if !ok {
			return columns{}, fmt.Errorf("missing CSV column %q", col.name)
		}
		*col.dst = i
	}
	return cols, nil
}

func parseRow(row []string, cols columns) (models.IssuerData, error) {
	get := func(i int) (string, error) {
		if i >= len(row) {
			return "", fmt.Errorf("short row: %d fields", len(row))
		}
		return strings.TrimSpace(row[i]), nil
	}

	dateStr, err := get(cols.date)
	if err != nil {
		return models.IssuerData{}, err
	}
	date, err := parseDate(dateStr)
	if err != nil {
		return models.IssuerData{}, err
	}

	issuer, err := get(cols.issuer)
	if err != nil {
		return models.IssuerData{}, err
	}
	if issuer == "" {
		return models.IssuerData{}, fmt.Errorf("empty issuer")
	}

	record := models.IssuerData{Issuer: issuer, Date: date}
	fields := []struct {
		idx int
		dst *string
	}{
		{cols.lastTrade, &record.LastTradePrice},
		{cols.max, &record.MaxPrice},
		{cols.min, &record.MinPrice},
		{cols.avg, &record.AvgPrice},
		{cols.pctChg, &record.PercentChange},
		{cols.volume, &record.Volume},
		{cols.turnoverBest, &record.TurnoverBest},
		{cols.totalTurnover, &record.TotalTurnover},
	}
	for _, f := range fields {
		// Kept verbatim: these are locale-formatted strings and must
		// round-trip byte-for-byte.
		value, err := get(f.idx)
		if err != nil {
			return models.IssuerData{}, err
		}
		*f.dst = value
	}
	return record, nil
}

func parseDate(s string) (models.TradeDate, error) {
	for _, layout := range csvLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return models.NewTradeDate(t.Year(), t.Month(), t.Day()), nil
		}
	}
	return models.TradeDate{}, fmt.Errorf("invalid date %q", s)
}
