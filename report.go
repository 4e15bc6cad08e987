/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package ncmploader

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type Report struct {
	runId               string
	runName             string
	metricsLogFilename  string
	percsReportFilename string
	percsPNGFilename    string
	percLogFilename     string
	metricsFile         *os.File
	percFile            *os.File
	metricsLogFile      *csv.Writer
	percLogFile         *csv.Writer
	reportOptions       *ReportOptions
	L                   *Logger
}

func NewReport(cfg *RunnerConfig) (*Report, error) {
	tn := time.Now().Unix()
	runId := uuid.New().String()
	dir := cfg.ReportOptions.Dir
	if dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.Wrap(err, "failed to create report dir")
		}
	}
	r := &Report{
		runId:               runId,
		runName:             cfg.Name,
		metricsLogFilename:  filepath.Join(dir, fmt.Sprintf(MetricsLogFile, cfg.Name, runId, tn)),
		percsReportFilename: filepath.Join(dir, fmt.Sprintf(ReportGraphFile, cfg.Name, runId, tn)),
		percsPNGFilename:    filepath.Join(dir, fmt.Sprintf(ReportPNGFile, cfg.Name, runId, tn)),
		percLogFilename:     filepath.Join(dir, fmt.Sprintf(PercsLogFile, cfg.Name, runId, tn)),
		reportOptions:       cfg.ReportOptions,
		L:                   NewLogger(cfg).With("report", cfg.Name),
	}
	var err error
	if r.metricsFile, err = CreateFileOrReplace(r.metricsLogFilename); err != nil {
		return nil, err
	}
	if r.percFile, err = CreateFileOrReplace(r.percLogFilename); err != nil {
		_ = r.metricsFile.Close()
		return nil, err
	}
	r.metricsLogFile = csv.NewWriter(r.metricsFile)
	r.percLogFile = csv.NewWriter(r.percFile)
	_ = r.metricsLogFile.Write(ResultsCsvHeader)
	_ = r.percLogFile.Write(PercsCsvHeader)
	return r, nil
}

// PercsLogFilename path of percentiles csv
func (r *Report) PercsLogFilename() string {
	return r.percLogFilename
}

// MetricsLogFilename path of requests csv
func (r *Report) MetricsLogFilename() string {
	return r.metricsLogFilename
}

func (r *Report) plot() {
	if r.reportOptions.PNG {
		r.L.Infof("reporting graphs: %s", r.percLogFilename)
		chart, err := PercsChart(r.percLogFilename, r.runName)
		if err != nil {
			r.L.Error(err)
			return
		}
		if err := RenderEChart(chart, r.percsReportFilename); err != nil {
			r.L.Error(err)
			return
		}
		pngChart, err := ResponsesChart(r.runName, r.percLogFilename)
		if err != nil {
			r.L.Error(err)
			return
		}
		if err := RenderChart(pngChart, r.percsPNGFilename); err != nil {
			r.L.Error(err)
		}
	}
	if r.reportOptions.Screenshot {
		if _, err := Screenshot(context.Background(), r.percsReportFilename); err != nil {
			r.L.Error(err)
		}
	}
}

func (r *Report) flushLogs() error {
	r.percLogFile.Flush()
	r.metricsLogFile.Flush()
	if err := r.percLogFile.Error(); err != nil {
		return errors.Wrap(err, "failed to write percentiles log")
	}
	if err := r.metricsLogFile.Error(); err != nil {
		return errors.Wrap(err, "failed to write requests log")
	}
	if err := r.percFile.Close(); err != nil {
		return err
	}
	return r.metricsFile.Close()
}

func (r *Report) writeResultEntry(res AttackResult, errorMsg string) {
	_ = r.metricsLogFile.Write([]string{
		res.DoResult.RequestLabel,
		strconv.FormatInt(res.Begin.UnixNano(), 10),
		strconv.FormatInt(res.End.UnixNano(), 10),
		res.Elapsed.String(),
		strconv.Itoa(res.DoResult.StatusCode),
		errorMsg,
	})
}

func (r *Report) writePercentilesEntry(label string, tick int, tickMetrics *Metrics) {
	_ = r.percLogFile.Write([]string{
		label,
		strconv.Itoa(tick),
		strconv.Itoa(int(tickMetrics.Rate)),
		strconv.FormatInt(tickMetrics.Latencies.P50.Milliseconds(), 10),
		strconv.FormatInt(tickMetrics.Latencies.P90.Milliseconds(), 10),
		strconv.FormatInt(tickMetrics.Latencies.P95.Milliseconds(), 10),
		strconv.FormatInt(tickMetrics.Latencies.P99.Milliseconds(), 10),
		strconv.FormatUint(tickMetrics.failed(), 10),
	})
}
