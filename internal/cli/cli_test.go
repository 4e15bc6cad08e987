/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package cli

import (
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cps-perf/ncmploader/ncmp"
)

func execute(t *testing.T, args ...string) (string, error) {
	cmd := GetRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestListCommand(t *testing.T) {
	out, err := execute(t, "list")
	require.NoError(t, err)
	for _, s := range []string{"profiles:", "  kpi", "  endurance", "scenarios:", "  passthroughReadAltIdScenario", "  legacyBatchConsumeScenario", "search filters:", "  trust-level"} {
		require.Contains(t, out, s)
	}
}

func TestLoadNcmpConfigFlags(t *testing.T) {
	cmd := getNodeCommand()
	require.NoError(t, cmd.ParseFlags([]string{
		"--deployment", "k8sHosts",
		"--ncmp-url", "http://ncmp:8080",
		"--kafka", "k1:9092,k2:9092",
		"--transport", ncmp.TransportFastHTTP,
	}))
	cfg, err := loadNcmpConfig(cmd)
	require.NoError(t, err)
	require.Equal(t, "http://ncmp:8080", cfg.NCMPBaseURL)
	require.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers())
	require.Equal(t, ncmp.TransportFastHTTP, cfg.Transport)

	cmd = getNodeCommand()
	require.NoError(t, cmd.ParseFlags([]string{"--transport", "carrier-pigeon"}))
	_, err = loadNcmpConfig(cmd)
	require.Error(t, err)
}

func TestRunCommandUnknownProfile(t *testing.T) {
	_, err := execute(t, "run", "--profile", "nope")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown profile nope")
}

func TestReportScalingCommand(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "scaling.csv")
	require.NoError(t, ioutil.WriteFile(in, []byte("cm_search_module,1,10\ncm_search_module,2,19\n"), 0644))
	_, err := execute(t, "report", "scaling", in)
	require.NoError(t, err)
	for _, f := range []string{"scaling.html", "scaling.png"} {
		st, err := os.Stat(filepath.Join(dir, f))
		require.NoError(t, err)
		require.Greater(t, st.Size(), int64(0))
	}
}

func TestBadLogFlags(t *testing.T) {
	_, err := execute(t, "list", "--log-level", "loud")
	require.Error(t, err)
	require.Contains(t, err.Error(), "bad log level")
	_, err = execute(t, "list", "--log-encoding", "xml")
	require.Error(t, err)
}

func TestListSchema(t *testing.T) {
	out, err := execute(t, "list", "--schema")
	require.NoError(t, err)
	require.Contains(t, out, `"$id"`)
	require.Contains(t, out, "passthroughReadAltIdScenario")
	require.NotContains(t, out, "search filters:")
}
