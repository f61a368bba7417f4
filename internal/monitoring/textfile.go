package monitoring

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/rotisserie/eris"
	"google.golang.org/protobuf/proto"

	"github.com/sells-group/puff-cli/internal/model"
)

const namespace = "puff_"

// Families builds the metric families for one scoring result. snap may be
// nil when run history is disabled.
func Families(res *model.Result, snap *RunSnapshot, at time.Time) []*dto.MetricFamily {
	rows := gaugeFamily("rows", "Rows produced per aggregation level.")
	for _, level := range model.Levels {
		rows.Metric = append(rows.Metric, gauge(float64(levelRows(res, level)), "level", level))
	}

	colors := gaugeFamily("color_rows", "Rows per aggregation level and classification.")
	counts := res.ColorCounts()
	for _, level := range model.Levels {
		names := make([]string, 0, len(counts[level]))
		for name := range counts[level] {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			colors.Metric = append(colors.Metric, gauge(float64(counts[level][name]), "level", level, "color", name))
		}
	}

	days := gaugeFamily("day_avg_score", "Average puff score per recorded day.")
	for _, d := range res.Days {
		days.Metric = append(days.Metric, gauge(d.AvgScore, "date", d.Date, "color", d.Color.String()))
	}

	recovered := gaugeFamily("seconds_recovered", "Rows whose seconds value was unreadable and replaced.")
	recovered.Metric = append(recovered.Metric, gauge(float64(len(res.Warnings))))

	last := gaugeFamily("last_run_timestamp_seconds", "Unix time the metrics were written.")
	last.Metric = append(last.Metric, gauge(float64(at.Unix())))

	out := []*dto.MetricFamily{rows, colors, days, recovered, last}
	if snap != nil {
		runs := gaugeFamily("runs", "Recorded runs in the lookback window by status.")
		runs.Metric = append(runs.Metric,
			gauge(float64(snap.Complete), "status", string(model.RunStatusComplete)),
			gauge(float64(snap.Failed), "status", string(model.RunStatusFailed)),
			gauge(float64(snap.Running), "status", string(model.RunStatusRunning)),
		)
		failRate := gaugeFamily("run_failure_ratio", "Failed over finished runs in the lookback window.")
		failRate.Metric = append(failRate.Metric, gauge(snap.FailRate))
		out = append(out, runs, failRate)
	}
	return out
}

// WriteText encodes families in the Prometheus text exposition format.
// Families without samples are skipped.
func WriteText(w io.Writer, families []*dto.MetricFamily) error {
	for _, mf := range families {
		if len(mf.GetMetric()) == 0 {
			continue
		}
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return eris.Wrapf(err, "monitoring: encode %s", mf.GetName())
		}
	}
	return nil
}

// WriteTextfile writes families to path for a node_exporter textfile
// collector. The file is replaced atomically so a scrape never sees a
// partial write.
func WriteTextfile(path string, families []*dto.MetricFamily) error {
	var buf bytes.Buffer
	if err := WriteText(&buf, families); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "monitoring: create dir %s", dir)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return eris.Wrap(err, "monitoring: create temp file")
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close() //nolint:errcheck
		return eris.Wrap(err, "monitoring: write temp file")
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "monitoring: close temp file")
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return eris.Wrap(err, "monitoring: chmod temp file")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return eris.Wrapf(err, "monitoring: rename to %s", path)
	}
	return nil
}

// ParseText decodes a text exposition, e.g. a textfile written earlier.
func ParseText(r io.Reader) (map[string]*dto.MetricFamily, error) {
	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(r)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: parse metrics text")
	}
	return mfs, nil
}

func gaugeFamily(name, help string) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name: proto.String(namespace + name),
		Help: proto.String(help),
		Type: dto.MetricType_GAUGE.Enum(),
	}
}

// gauge builds one sample; labels are name/value pairs.
func gauge(v float64, labels ...string) *dto.Metric {
	m := &dto.Metric{Gauge: &dto.Gauge{Value: proto.Float64(v)}}
	for i := 0; i+1 < len(labels); i += 2 {
		m.Label = append(m.Label, &dto.LabelPair{
			Name:  proto.String(labels[i]),
			Value: proto.String(labels[i+1]),
		})
	}
	return m
}

func levelRows(res *model.Result, level string) int {
	switch level {
	case model.LevelPuff:
		return len(res.Puffs)
	case model.LevelInhaler:
		return len(res.Inhalers)
	case model.LevelTreatment:
		return len(res.Treatments)
	case model.LevelDay:
		return len(res.Days)
	}
	return 0
}
