// Copyright 2025 Tom Barlow
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

package errors

// UserVisibleError marks errors fit for direct display. The CLI's exit
// handler prints UserMessage and Suggestion instead of the raw error
// chain when an error in the chain implements it.
type UserVisibleError interface {
	error

	// IsUserVisible distinguishes user-facing failures from internal
	// ones that should surface as plain wrapped errors.
	IsUserVisible() bool

	// UserMessage is the display message, free of internal detail.
	UserMessage() string

	// Suggestion is actionable next-step guidance, or empty.
	Suggestion() string
}
