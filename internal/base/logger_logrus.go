// Copyright 2024 The RocksDB-Go Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package base

import "github.com/sirupsen/logrus"

// LogrusLogger adapts a *logrus.Logger (or the package-level logger) to the
// Logger interface. This is the default Logger used by Options.EnsureDefaults.
type LogrusLogger struct {
	Entry *logrus.Entry
}

// NewLogrusLogger wraps l with a "subsys=blobstore" field.
func NewLogrusLogger(l *logrus.Logger) LogrusLogger {
	if l == nil {
		l = logrus.StandardLogger()
	}
	return LogrusLogger{Entry: l.WithField("subsys", "blobstore")}
}

func (l LogrusLogger) Infof(format string, args ...interface{}) {
	l.Entry.Infof(format, args...)
}

func (l LogrusLogger) Warningf(format string, args ...interface{}) {
	l.Entry.Warnf(format, args...)
}

func (l LogrusLogger) Errorf(format string, args ...interface{}) {
	l.Entry.Errorf(format, args...)
}
