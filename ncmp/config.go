/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package ncmp

import (
	"embed"
	"fmt"
	"io/ioutil"
	"path"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	EnvTestProfile    = "TEST_PROFILE"
	EnvDeploymentType = "DEPLOYMENT_TYPE"
	EnvTotalCmHandles = "TOTAL_CM_HANDLES"

	DeploymentDockerHosts = "dockerHosts"

	TransportNetHTTP  = "nethttp"
	TransportFastHTTP = "fasthttp"
)

//go:embed environments
var environments embed.FS

var errInvalidConfig = errors.New("invalid ncmp config")

// validate reports fields by their json names
var validate = func() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	})
	return v
}()

// Config NCMP environment and test constants
type Config struct {
	NCMPBaseURL                    string `json:"ncmpBaseUrl" yaml:"ncmpBaseUrl" validate:"required,url"`
	DMIStubURL                     string `json:"dmiStubUrl" yaml:"dmiStubUrl" validate:"omitempty,url"`
	KafkaBootstrapServer           string `json:"kafkaBootstrapServer" yaml:"kafkaBootstrapServer"`
	ContainerCoolDownTimeInSeconds int    `json:"containerCoolDownTimeInSeconds" yaml:"containerCoolDownTimeInSeconds" validate:"gte=0"`

	TotalCmHandles        int `json:"totalCmHandles" yaml:"totalCmHandles" validate:"gt=0"`
	RegistrationBatchSize int `json:"registrationBatchSize" yaml:"registrationBatchSize" validate:"gt=0"`
	// must have same values as the dmi stub delays
	ReadDataForCmHandleDelayMs  int `json:"readDataForCmHandleDelayMs" yaml:"readDataForCmHandleDelayMs" validate:"gte=0"`
	WriteDataForCmHandleDelayMs int `json:"writeDataForCmHandleDelayMs" yaml:"writeDataForCmHandleDelayMs" validate:"gte=0"`

	LegacyBatchTopic string `json:"legacyBatchTopic" yaml:"legacyBatchTopic" validate:"required"`
	// production code limits legacy batch to 200 ids
	LegacyBatchSize int `json:"legacyBatchSize" yaml:"legacyBatchSize" validate:"gt=0,lte=200"`
	// LegacyBatchMessagesToConsume 0 means 15 minutes of one batch per second
	LegacyBatchMessagesToConsume int    `json:"legacyBatchMessagesToConsume" yaml:"legacyBatchMessagesToConsume" validate:"gte=0"`
	AvcEventsTopic               string `json:"avcEventsTopic" yaml:"avcEventsTopic" validate:"required"`

	PollIntervalMs    int `json:"pollIntervalMs" yaml:"pollIntervalMs" validate:"gt=0"`
	ReadyTimeoutSec   int `json:"readyTimeoutSec" yaml:"readyTimeoutSec" validate:"gt=0"`
	RequestTimeoutSec int `json:"requestTimeoutSec" yaml:"requestTimeoutSec" validate:"gte=0"`

	// Transport nethttp|fasthttp, empty means nethttp
	Transport     string `json:"transport" yaml:"transport" validate:"omitempty,oneof=nethttp fasthttp"`
	DumpTransport bool   `json:"dumpTransport" yaml:"dumpTransport"`
}

func DefaultConfig() Config {
	return Config{
		NCMPBaseURL:                    "http://localhost:8883",
		DMIStubURL:                     "http://ncmp-dmi-plugin-demo-and-csit-stub:8092",
		KafkaBootstrapServer:           "localhost:9092",
		ContainerCoolDownTimeInSeconds: 10,
		TotalCmHandles:                 50000,
		RegistrationBatchSize:          2000,
		ReadDataForCmHandleDelayMs:     300,
		WriteDataForCmHandleDelayMs:    670,
		LegacyBatchTopic:               "legacy_batch_topic",
		LegacyBatchSize:                200,
		AvcEventsTopic:                 "dmi-cm-events",
		PollIntervalMs:                 5000,
		ReadyTimeoutSec:                30 * 60,
		RequestTimeoutSec:              60,
		Transport:                      TransportNetHTTP,
	}
}

// EnvironmentName maps deployment type to environment directory
func EnvironmentName(deploymentType string) string {
	if deploymentType == "" || deploymentType == DeploymentDockerHosts {
		return "docker"
	}
	return "kubernetes"
}

// LoadEnvironment loads embedded environment config over defaults
func LoadEnvironment(name string) (Config, error) {
	b, err := environments.ReadFile(path.Join("environments", name, "config.json"))
	if err != nil {
		return Config{}, errors.Wrapf(err, "unknown environment %s", name)
	}
	return parseConfig(b, false)
}

// LoadConfigFile loads json or yaml config file over defaults
func LoadConfigFile(file string) (Config, error) {
	b, err := ioutil.ReadFile(file)
	if err != nil {
		return Config{}, errors.Wrap(err, "failed to read config")
	}
	ext := strings.ToLower(filepath.Ext(file))
	return parseConfig(b, ext == ".yaml" || ext == ".yml")
}

func parseConfig(b []byte, isYaml bool) (Config, error) {
	cfg := DefaultConfig()
	var err error
	if isYaml {
		err = yaml.Unmarshal(b, &cfg)
	} else {
		err = jsoniter.Unmarshal(b, &cfg)
	}
	if err != nil {
		return Config{}, errors.Wrap(err, "failed to parse config")
	}
	return cfg, cfg.Validate()
}

// ApplyEnv overrides config from environment variables
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvTotalCmHandles); ok && v != "" {
		total, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(err, "bad %s", EnvTotalCmHandles)
		}
		c.TotalCmHandles = total
	}
	return c.Validate()
}

func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return errors.Wrap(err, "failed to validate config")
	}
	problems := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		problems = append(problems, fmt.Sprintf("%s: %v does not satisfy %s", fe.Field(), fe.Value(), rule))
	}
	return errors.Wrap(errInvalidConfig, strings.Join(problems, "; "))
}

// KafkaBrokers bootstrap servers list
func (c Config) KafkaBrokers() []string {
	brokers := make([]string, 0)
	for _, b := range strings.Split(c.KafkaBootstrapServer, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// LegacyBatchTotalMessages amount of messages legacy batch consumer waits for
func (c Config) LegacyBatchTotalMessages() int {
	if c.LegacyBatchMessagesToConsume > 0 {
		return c.LegacyBatchMessagesToConsume
	}
	return 15 * 60 * c.LegacyBatchSize
}

func (c Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

func (c Config) ReadyTimeout() time.Duration {
	return time.Duration(c.ReadyTimeoutSec) * time.Second
}

func (c Config) CoolDown() time.Duration {
	return time.Duration(c.ContainerCoolDownTimeInSeconds) * time.Second
}
