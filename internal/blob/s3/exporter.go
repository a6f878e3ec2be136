package s3blob

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/quantfossa/flowsim/internal/domain"
)

// CashflowSource provides read access to a run's persisted cash flows. The
// Postgres result store satisfies this implicitly.
type CashflowSource interface {
	ListCashflows(ctx context.Context, runID, contractID string) ([]domain.Cashflow, error)
}

// Exporter uploads completed runs to blob storage: one CSV of cash flows per
// contract plus a JSON run summary. Exports are additive; re-exporting a run
// overwrites the same keys.
type Exporter struct {
	writer domain.BlobWriter
	source CashflowSource
}

// NewExporter creates an Exporter reading from source and uploading through
// writer.
func NewExporter(writer domain.BlobWriter, source CashflowSource) *Exporter {
	return &Exporter{writer: writer, source: source}
}

// ExportRun uploads the cash flows of every listed contract under
// runs/{runID}/ and finishes with a summary object. Contracts with no cash
// flows are skipped.
func (e *Exporter) ExportRun(ctx context.Context, run domain.SimulationRun, contractIDs []string) error {
	exported := 0
	for _, id := range contractIDs {
		flows, err := e.source.ListCashflows(ctx, run.ID, id)
		if err != nil {
			return fmt.Errorf("s3blob: export run %s: list cashflows %s: %w", run.ID, id, err)
		}
		if len(flows) == 0 {
			continue
		}

		buf, err := marshalCashflowCSV(flows)
		if err != nil {
			return fmt.Errorf("s3blob: export run %s: encode %s: %w", run.ID, id, err)
		}

		path := cashflowPath(run.ID, id)
		if err := e.writer.Put(ctx, path, bytes.NewReader(buf), "text/csv"); err != nil {
			return fmt.Errorf("s3blob: export run %s: upload %s: %w", run.ID, path, err)
		}
		exported++
	}

	summary, err := marshalRunSummary(run, exported)
	if err != nil {
		return fmt.Errorf("s3blob: export run %s: summary: %w", run.ID, err)
	}
	path := fmt.Sprintf("runs/%s/run.json", run.ID)
	if err := e.writer.Put(ctx, path, bytes.NewReader(summary), "application/json"); err != nil {
		return fmt.Errorf("s3blob: export run %s: upload summary: %w", run.ID, err)
	}
	return nil
}

// cashflowPath builds the S3 key for one contract's cash-flow export.
//
//	runs/3f2a.../CT-001.csv
func cashflowPath(runID, contractID string) string {
	return fmt.Sprintf("runs/%s/%s.csv", runID, contractID)
}

// marshalCashflowCSV renders cash flows as a CSV document with a header row.
func marshalCashflowCSV(flows []domain.Cashflow) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"time", "event", "amount", "currency"}); err != nil {
		return nil, err
	}
	for _, f := range flows {
		record := []string{
			f.Time.UTC().Format(time.RFC3339),
			string(f.Event),
			strconv.FormatFloat(f.Amount, 'f', -1, 64),
			f.Currency,
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func marshalRunSummary(run domain.SimulationRun, exported int) ([]byte, error) {
	return json.Marshal(map[string]any{
		"id":          run.ID,
		"startedAt":   run.StartedAt,
		"finishedAt":  run.FinishedAt,
		"contracts":   run.Contracts,
		"failed":      run.Failed,
		"status":      run.Status,
		"exported":    exported,
		"generatedAt": time.Now().UTC(),
	})
}
