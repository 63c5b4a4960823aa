package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment variable names.
const (
	EnvConfig                      = "SCHEMAGATE_CONFIG"
	EnvSchema                      = "SCHEMAGATE_SCHEMA"
	EnvListen                      = "SCHEMAGATE_LISTEN"
	EnvUpstream                    = "SCHEMAGATE_UPSTREAM"
	EnvReadTimeout                 = "SCHEMAGATE_READ_TIMEOUT"
	EnvWriteTimeout                = "SCHEMAGATE_WRITE_TIMEOUT"
	EnvValidateRequest             = "SCHEMAGATE_VALIDATE_REQUEST"
	EnvValidateResponse            = "SCHEMAGATE_VALIDATE_RESPONSE"
	EnvReturnRequestErrors         = "SCHEMAGATE_RETURN_REQUEST_ERRORS"
	EnvReturnResponseErrors        = "SCHEMAGATE_RETURN_RESPONSE_ERRORS"
	EnvPreserveResponseContentType = "SCHEMAGATE_PRESERVE_RESPONSE_CONTENT_TYPE"
	EnvRequestErrorStatus          = "SCHEMAGATE_REQUEST_ERROR_STATUS"
	EnvIgnorePaths                 = "SCHEMAGATE_IGNORE_PATHS"
	EnvLogLevel                    = "SCHEMAGATE_LOG_LEVEL"
	EnvLogFormat                   = "SCHEMAGATE_LOG_FORMAT"
	EnvMetricsEnabled              = "SCHEMAGATE_METRICS_ENABLED"
)

// LoadEnv overlays SCHEMAGATE_* variables onto cfg. Only variables that are
// set are applied; a value that does not parse is an error.
func LoadEnv(cfg *Config) error {
	if cfg.Sources == nil {
		cfg.Sources = make(map[string]string)
	}

	strs := []struct {
		env, field string
		dst        *string
	}{
		{EnvSchema, "schema", &cfg.Schema},
		{EnvListen, "listen", &cfg.Listen},
		{EnvUpstream, "upstream", &cfg.Upstream},
		{EnvLogLevel, "log.level", &cfg.Log.Level},
		{EnvLogFormat, "log.format", &cfg.Log.Format},
	}
	for _, s := range strs {
		if v := os.Getenv(s.env); v != "" {
			*s.dst = v
			cfg.Sources[s.field] = SourceEnv
		}
	}

	bools := []struct {
		env, field string
		dst        *bool
	}{
		{EnvValidateRequest, "validation.validateRequest", &cfg.Validation.ValidateRequest},
		{EnvValidateResponse, "validation.validateResponse", &cfg.Validation.ValidateResponse},
		{EnvReturnRequestErrors, "validation.returnRequestErrors", &cfg.Validation.ReturnRequestErrors},
		{EnvReturnResponseErrors, "validation.returnResponseErrors", &cfg.Validation.ReturnResponseErrors},
		{EnvPreserveResponseContentType, "validation.preserveResponseContentType", &cfg.Validation.PreserveResponseContentType},
		{EnvMetricsEnabled, "metrics.enabled", &cfg.Metrics.Enabled},
	}
	for _, b := range bools {
		if v := os.Getenv(b.env); v != "" {
			parsed, err := parseBool(v)
			if err != nil {
				return fmt.Errorf("%s: %w", b.env, err)
			}
			*b.dst = parsed
			cfg.Sources[b.field] = SourceEnv
		}
	}

	durations := []struct {
		env, field string
		dst        *time.Duration
	}{
		{EnvReadTimeout, "readTimeout", &cfg.ReadTimeout},
		{EnvWriteTimeout, "writeTimeout", &cfg.WriteTimeout},
	}
	for _, d := range durations {
		if v := os.Getenv(d.env); v != "" {
			parsed, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", d.env, err)
			}
			*d.dst = parsed
			cfg.Sources[d.field] = SourceEnv
		}
	}

	if v := os.Getenv(EnvRequestErrorStatus); v != "" {
		status, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvRequestErrorStatus, err)
		}
		cfg.Validation.RequestErrorStatus = status
		cfg.Sources["validation.requestErrorStatus"] = SourceEnv
	}

	if v := os.Getenv(EnvIgnorePaths); v != "" {
		var paths []string
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				paths = append(paths, p)
			}
		}
		cfg.Validation.IgnorePaths = paths
		cfg.Sources["validation.ignorePaths"] = SourceEnv
	}
	return nil
}

func parseBool(v string) (bool, error) {
	switch strings.ToLower(v) {
	case "true", "1", "yes", "on":
		return true, nil
	case "false", "0", "no", "off":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", v)
}
