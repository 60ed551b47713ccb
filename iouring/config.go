// Copyright (c) 2023 Paweł Gaczyński
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package iouring

import (
	"time"

	"github.com/rs/zerolog"
)

type ConfigOption func(*Config)

// Config controls ring creation. Options only record the request,
// CreateRing validates the combination.
type Config struct {
	Flags        SetupFlags
	Features     Features
	CQEntries    uint32
	SQThreadCPU  uint32
	SQThreadIdle time.Duration
	WQFd         int
	LoggerLevel  zerolog.Level
	PrettyLogger bool
	Logger       *zerolog.Logger
}

func WithSetupFlags(flags SetupFlags) ConfigOption {
	return func(c *Config) {
		c.Flags = c.Flags.Union(flags)
	}
}

// WithFeatures makes CreateRing fail unless the kernel reports all of features.
func WithFeatures(features Features) ConfigOption {
	return func(c *Config) {
		c.Features = c.Features.Union(features)
	}
}

func WithCQEntries(entries uint32) ConfigOption {
	return func(c *Config) {
		c.Flags = c.Flags.Union(SetupCQSize)
		c.CQEntries = entries
	}
}

func WithSQPoll(idle time.Duration) ConfigOption {
	return func(c *Config) {
		c.Flags = c.Flags.Union(SetupSQPoll)
		c.SQThreadIdle = idle
	}
}

func WithSQThreadCPU(cpu uint32) ConfigOption {
	return func(c *Config) {
		c.Flags = c.Flags.Union(SetupSQAff)
		c.SQThreadCPU = cpu
	}
}

// WithAttachWQ shares the async worker pool of the ring behind fd.
func WithAttachWQ(fd int) ConfigOption {
	return func(c *Config) {
		c.Flags = c.Flags.Union(SetupAttachWQ)
		c.WQFd = fd
	}
}

func WithLoggerLevel(loggerLevel zerolog.Level) ConfigOption {
	return func(c *Config) {
		c.LoggerLevel = loggerLevel
	}
}

func WithPrettyLogger(prettyLogger bool) ConfigOption {
	return func(c *Config) {
		c.PrettyLogger = prettyLogger
	}
}

func WithLogger(logger zerolog.Logger) ConfigOption {
	return func(c *Config) {
		c.Logger = &logger
	}
}

func NewConfig(opts ...ConfigOption) Config {
	config := Config{
		WQFd:         -1,
		LoggerLevel:  zerolog.ErrorLevel,
		PrettyLogger: false,
	}
	for _, opt := range opts {
		opt(&config)
	}

	return config
}
