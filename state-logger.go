// Copyright 2022 The OpenZipkin Authors
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

package httptracing

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// StateLogger is a Logger that logs error only if logErrorInterval have passed
// from the last error, or it is a different error than the last seen. Errors
// with the same message count as the same error.
type StateLogger struct {
	logger           *zap.Logger
	logErrorInterval time.Duration
	lastError        error
	lastErrorTime    time.Time
	mutex            sync.Mutex
}

// NewStateLogger creates a new stateLogger
func NewStateLogger(logger *zap.Logger, logErrorInterval time.Duration) *StateLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StateLogger{
		logger:           logger,
		logErrorInterval: logErrorInterval,
	}
}

// LogError logs an error if it is different from the last seen error,
// or that logErrorInterval have passed since the last reported error.
func (se *StateLogger) LogError(err error) {
	se.mutex.Lock()
	defer se.mutex.Unlock()
	if se.lastError != nil && err.Error() == se.lastError.Error() &&
		time.Since(se.lastErrorTime) < se.logErrorInterval {
		return
	}
	se.logger.Warn("tracing error", zap.Error(err))
	se.lastError = err
	se.lastErrorTime = time.Now()
}

// Fixed makes the stateLogger understand that the state is fixed, and when
// the next error will occur, it will log it.
func (se *StateLogger) Fixed(msg string, fields ...zap.Field) {
	se.mutex.Lock()
	defer se.mutex.Unlock()
	if se.logErrorInterval == 0 || se.lastError == nil {
		return
	}
	se.logger.Info(msg, fields...)
	se.lastError = nil
}
