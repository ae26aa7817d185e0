// Copyright 2024 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package logics

import "github.com/juju/errors"

// ErrNotInitialized is returned when scoring is requested before a successful fit.
var ErrNotInitialized = errors.New("recommender not initialized")

// TrainingError reports a failed fit. The previous model, if any, stays in use.
type TrainingError struct {
	Cause error
}

func NewTrainingError(cause error) error {
	return &TrainingError{Cause: cause}
}

func (e *TrainingError) Error() string {
	if e.Cause == nil {
		return "training failed"
	}
	return "training failed: " + e.Cause.Error()
}

func (e *TrainingError) Unwrap() error {
	return e.Cause
}

// IsTrainingError reports whether any error in the chain is a TrainingError.
func IsTrainingError(err error) bool {
	var trainingError *TrainingError
	return errors.As(err, &trainingError)
}
