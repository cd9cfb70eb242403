// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config loads solver options and system files for the equilibrate command.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/curioloop/equilibrium/equilibrium"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables overriding option keys,
// e.g. EQUILIBRATE_TOLERANCE or EQUILIBRATE_COMPUTE_DNDT.
const EnvPrefix = "EQUILIBRATE"

// SetDefaults registers the default solver options on v.
func SetDefaults(v *viper.Viper) {
	d := equilibrium.DefaultOptions()
	v.SetDefault("compute.dndt", d.Compute.DnDT)
	v.SetDefault("compute.dndp", d.Compute.DnDP)
	v.SetDefault("compute.dndb", d.Compute.DnDB)
	v.SetDefault("maxIterations", d.MaxIterations)
	v.SetDefault("tolerance", d.Tolerance)
	v.SetDefault("initialBarrierParameter", d.InitialBarrierParameter)
	v.SetDefault("fraction", d.Fraction)
	v.SetDefault("hessian", d.Hessian)
	v.SetDefault("epsilon", d.Epsilon)
	v.SetDefault("log.level", "info")
}

// NewViper returns a viper instance with defaults, environment overrides and,
// when path is not empty, the YAML configuration file at path.
func NewViper(path string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if path == "" {
		return v, nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return v, nil
}

// LoadOptions decodes and validates the solver options held by v.
// Keys without a value keep the defaults of equilibrium.DefaultOptions.
func LoadOptions(v *viper.Viper) (equilibrium.Options, error) {
	opts := equilibrium.DefaultOptions()
	if err := v.Unmarshal(&opts); err != nil {
		return opts, fmt.Errorf("config: decode options: %w", err)
	}
	if err := opts.Validate(); err != nil {
		return opts, err
	}
	return opts, nil
}

// NewLogger returns a text logger writing to stderr at the named level.
func NewLogger(level string) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrLogLevel, level)
	}
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	logger.SetLevel(lvl)
	return logger, nil
}
