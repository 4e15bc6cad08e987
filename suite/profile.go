/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package suite

import (
	"embed"
	"fmt"
	"io/ioutil"
	"math"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jinzhu/copier"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/cps-perf/ncmploader"
)

const (
	ProfileKPI       = "kpi"
	ProfileEndurance = "endurance"

	// DefaultMaxDuration shared-iterations bound when maxDuration is not set
	DefaultMaxDuration = 10 * time.Minute
	// DefaultAttackerTimeoutSec single iteration timeout when neither scenario nor base sets one
	DefaultAttackerTimeoutSec = 60
)

var errInvalidProfile = errors.New("invalid profile")

//go:embed profiles
var profiles embed.FS

// ScenarioConfig one scenario of a profile, durations are Go duration strings, e.g. "15m"
type ScenarioConfig struct {
	Executor    ncmploader.Executor `json:"executor" yaml:"executor" jsonschema:"required,enum=constant-arrival-rate,enum=constant-vus,enum=shared-iterations"`
	Exec        string              `json:"exec" yaml:"exec" jsonschema:"required"`
	VUs         int                 `json:"vus" yaml:"vus"`
	Rate        int                 `json:"rate" yaml:"rate"`
	Iterations  int                 `json:"iterations" yaml:"iterations"`
	Duration    string              `json:"duration" yaml:"duration"`
	MaxDuration string              `json:"maxDuration" yaml:"maxDuration"`
	StartTime   string              `json:"startTime" yaml:"startTime"`
	// TimeoutSec single iteration timeout
	TimeoutSec int `json:"timeoutSec" yaml:"timeoutSec"`
}

// Profile scenarios to run together with thresholds and KPI summary lines
type Profile struct {
	Name       string                    `json:"name" yaml:"name" jsonschema:"required"`
	Scenarios  map[string]ScenarioConfig `json:"scenarios" yaml:"scenarios" jsonschema:"required"`
	Thresholds map[string][]string       `json:"thresholds" yaml:"thresholds"`
	KPI        []ncmploader.KPIMetadata  `json:"kpi" yaml:"kpi"`
}

// ProfileNames names of embedded profiles
func ProfileNames() []string {
	entries, err := profiles.ReadDir("profiles")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())))
	}
	sort.Strings(names)
	return names
}

// LoadProfile loads embedded profile by name
func LoadProfile(name string) (*Profile, error) {
	for _, ext := range []string{".json", ".yaml"} {
		b, err := profiles.ReadFile(path.Join("profiles", name+ext))
		if err != nil {
			continue
		}
		return parseProfile(b, ext == ".yaml")
	}
	return nil, errors.Wrapf(errInvalidProfile, "unknown profile %s, known: %v", name, ProfileNames())
}

// LoadProfileFile loads json or yaml profile file
func LoadProfileFile(file string) (*Profile, error) {
	b, err := ioutil.ReadFile(file)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read profile")
	}
	ext := strings.ToLower(filepath.Ext(file))
	return parseProfile(b, ext == ".yaml" || ext == ".yml")
}

func parseProfile(b []byte, isYaml bool) (*Profile, error) {
	p := &Profile{}
	var err error
	if isYaml {
		err = yaml.Unmarshal(b, p)
	} else {
		err = jsoniter.Unmarshal(b, p)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse profile")
	}
	return p, p.Validate()
}

// Validate checks every scenario, threshold and KPI line
func (p *Profile) Validate() error {
	problems := make([]string, 0)
	if len(p.Scenarios) == 0 {
		problems = append(problems, "no scenarios")
	}
	for _, name := range p.ScenarioNames() {
		sc := p.Scenarios[name]
		if _, err := ncmploader.AttackerFromString(sc.Exec); err != nil {
			problems = append(problems, fmt.Sprintf("%s: %s", name, err))
			continue
		}
		cfg, err := sc.RunnerConfig(name, ncmploader.RunnerConfig{})
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s: %s", name, err))
			continue
		}
		cfg.DefaultCfgValues()
		for _, pr := range cfg.Validate() {
			problems = append(problems, fmt.Sprintf("%s: %s", name, pr))
		}
	}
	for metric, exprs := range p.Thresholds {
		for _, expr := range exprs {
			if _, err := ncmploader.ParseThreshold(expr); err != nil {
				problems = append(problems, fmt.Sprintf("%s: %s", metric, err))
			}
		}
	}
	for _, kpi := range p.KPI {
		if len(p.Thresholds[kpi.MeasurementName]) == 0 {
			problems = append(problems, fmt.Sprintf("kpi %s: no threshold for %s", kpi.TestNumber, kpi.MeasurementName))
		}
	}
	if len(problems) > 0 {
		sort.Strings(problems)
		return errors.Wrapf(errInvalidProfile, "%s: %s", p.Name, strings.Join(problems, "; "))
	}
	return nil
}

// ScenarioNames sorted scenario names
func (p *Profile) ScenarioNames() []string {
	names := make([]string, 0, len(p.Scenarios))
	for n := range p.Scenarios {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// RunnerConfig derives scenario runner config from base config
func (sc ScenarioConfig) RunnerConfig(name string, base ncmploader.RunnerConfig) (ncmploader.RunnerConfig, error) {
	cfg := ncmploader.RunnerConfig{}
	if err := copier.Copy(&cfg, &base); err != nil {
		return cfg, errors.Wrap(err, "failed to copy base config")
	}
	// pointers are copied as is
	if base.ReportOptions != nil {
		ro := *base.ReportOptions
		cfg.ReportOptions = &ro
	}
	if base.ClusterOptions != nil {
		co := ncmploader.ClusterOptions{Nodes: append([]string(nil), base.ClusterOptions.Nodes...)}
		cfg.ClusterOptions = &co
	}
	cfg.Name = name
	cfg.Exec = sc.Exec
	cfg.Executor = sc.Executor
	cfg.Attackers = sc.VUs
	cfg.StartRPS = 0
	cfg.StepRPS = 0
	cfg.StepDurationSec = 0
	cfg.Iterations = 0

	startTime, err := parseDuration(sc.StartTime, 0)
	if err != nil {
		return cfg, errors.Wrap(err, "startTime")
	}
	cfg.WaitBeforeSec = seconds(startTime)

	switch sc.Executor {
	case ncmploader.SharedIterations:
		maxDuration, err := parseDuration(sc.MaxDuration, DefaultMaxDuration)
		if err != nil {
			return cfg, errors.Wrap(err, "maxDuration")
		}
		cfg.Iterations = sc.Iterations
		cfg.TestTimeSec = seconds(maxDuration)
	default:
		duration, err := parseDuration(sc.Duration, 0)
		if err != nil {
			return cfg, errors.Wrap(err, "duration")
		}
		cfg.TestTimeSec = seconds(duration)
		if sc.Executor == ncmploader.ConstantArrivalRate || sc.Executor == "" {
			cfg.StartRPS = sc.Rate
		}
	}

	switch {
	case sc.TimeoutSec > 0:
		cfg.AttackerTimeout = sc.TimeoutSec
	case cfg.AttackerTimeout <= 0:
		cfg.AttackerTimeout = DefaultAttackerTimeoutSec
	}
	return cfg, nil
}

func parseDuration(s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, errors.Errorf("negative duration %s", s)
	}
	return d, nil
}

// seconds rounds up, runner works with whole seconds
func seconds(d time.Duration) int {
	return int(math.Ceil(d.Seconds()))
}
