/*
Copyright 2025 The llm-d Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package logging wires logr/zap for the collector and provides the
// verbosity levels used with logger.V().
package logging

import (
	"io"
	"os"

	"github.com/go-logr/logr"
	uberzap "go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
)

// Verbosity levels for logger.V().
const (
	DEBUG = 1
	TRACE = 2
)

// Options controls how the process logger is built.
type Options struct {
	// Development enables human readable console output and stack traces on warnings.
	Development bool
	// Verbosity is the highest V() level that is emitted.
	Verbosity int
	// Output defaults to os.Stderr.
	Output io.Writer
}

// NewLogger builds a zap backed logr.Logger.
func NewLogger(opts Options) logr.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	level := uberzap.NewAtomicLevelAt(zapcore.Level(-opts.Verbosity))
	return zap.New(
		zap.UseDevMode(opts.Development),
		zap.WriteTo(out),
		zap.Level(level),
	)
}

// Setup builds the process logger and installs it as the controller-runtime
// root logger so that ctrl.Log and ctrl.LoggerFrom resolve to it.
func Setup(opts Options) logr.Logger {
	logger := NewLogger(opts)
	ctrl.SetLogger(logger)
	return logger
}

// NewTestLogger installs a verbose development logger for test suites.
func NewTestLogger() logr.Logger {
	return Setup(Options{Development: true, Verbosity: TRACE})
}
