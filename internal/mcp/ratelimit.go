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

package mcp

import (
	"golang.org/x/time/rate"
)

const (
	defaultRunsPerMinute  = 10
	defaultCallsPerMinute = 100
)

// RateLimiter bounds how fast MCP clients can drive the server. Tool
// calls and pipeline executions draw from separate buckets, so a chatty
// client inspecting pipelines cannot burn the execution budget.
type RateLimiter struct {
	runs  *rate.Limiter
	calls *rate.Limiter
}

// NewRateLimiter creates a limiter admitting runsPerMinute pipeline
// executions and callsPerMinute tool calls. Each bucket starts full, so
// a fresh server accepts a burst up to the per-minute allowance.
func NewRateLimiter(runsPerMinute, callsPerMinute int) *RateLimiter {
	return &RateLimiter{
		runs:  rate.NewLimiter(rate.Limit(runsPerMinute)/60, runsPerMinute),
		calls: rate.NewLimiter(rate.Limit(callsPerMinute)/60, callsPerMinute),
	}
}

// AllowRun reports whether another pipeline execution may start now.
func (r *RateLimiter) AllowRun() bool {
	return r.runs.Allow()
}

// AllowCall reports whether another tool call may proceed now.
func (r *RateLimiter) AllowCall() bool {
	return r.calls.Allow()
}
