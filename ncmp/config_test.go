/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package ncmp

import (
	"io/ioutil"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestLoadEnvironment(t *testing.T) {
	cfg, err := LoadEnvironment(EnvironmentName(""))
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8883", cfg.NCMPBaseURL)
	require.Equal(t, 10*time.Second, cfg.CoolDown())

	cfg, err = LoadEnvironment(EnvironmentName("k8sHosts"))
	require.NoError(t, err)
	require.Equal(t, "http://cps-ncmp-service:8080", cfg.NCMPBaseURL)
	require.Equal(t, []string{"cps-kafka:9092"}, cfg.KafkaBrokers())
	// defaults are kept
	require.Equal(t, 50000, cfg.TotalCmHandles)

	_, err = LoadEnvironment("nowhere")
	require.Error(t, err)
}

func TestLoadConfigFileYaml(t *testing.T) {
	f := filepath.Join(t.TempDir(), "ncmp.yaml")
	require.NoError(t, ioutil.WriteFile(f, []byte("ncmpBaseUrl: http://ncmp:8080\ntotalCmHandles: 100\ntransport: fasthttp\n"), 0644))
	cfg, err := LoadConfigFile(f)
	require.NoError(t, err)
	require.Equal(t, "http://ncmp:8080", cfg.NCMPBaseURL)
	require.Equal(t, 100, cfg.TotalCmHandles)
	require.Equal(t, TransportFastHTTP, cfg.Transport)
	require.Equal(t, 2000, cfg.RegistrationBatchSize)

	require.NoError(t, ioutil.WriteFile(f, []byte("transport: grpc\n"), 0644))
	_, err = LoadConfigFile(f)
	require.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	cfg := DefaultConfig()
	env := map[string]string{EnvTotalCmHandles: "20000"}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
	require.NoError(t, cfg.ApplyEnv(lookup))
	require.Equal(t, 20000, cfg.TotalCmHandles)

	env[EnvTotalCmHandles] = "many"
	require.Error(t, cfg.ApplyEnv(lookup))
	env[EnvTotalCmHandles] = "0"
	require.Error(t, cfg.ApplyEnv(lookup))
}

func TestKafkaBrokers(t *testing.T) {
	cfg := DefaultConfig()
	cfg.KafkaBootstrapServer = "a:9092, b:9092,"
	require.Equal(t, []string{"a:9092", "b:9092"}, cfg.KafkaBrokers())
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.NCMPBaseURL = "not a url"
	cfg.LegacyBatchSize = 500
	cfg.Transport = "grpc"
	err := cfg.Validate()
	require.Equal(t, errInvalidConfig, errors.Cause(err))
	for _, problem := range []string{
		"ncmpBaseUrl: not a url does not satisfy url",
		"legacyBatchSize: 500 does not satisfy lte=200",
		"transport: grpc does not satisfy oneof=nethttp fasthttp",
	} {
		require.Contains(t, err.Error(), problem)
	}
}
