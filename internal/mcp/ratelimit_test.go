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
	"testing"
)

func TestRateLimiter_CallBurst(t *testing.T) {
	rl := NewRateLimiter(1, 3)

	for i := 0; i < 3; i++ {
		if !rl.AllowCall() {
			t.Fatalf("call %d should be allowed within burst", i+1)
		}
	}
	if rl.AllowCall() {
		t.Error("call beyond burst should be denied")
	}
}

func TestRateLimiter_RunBucketIsSeparate(t *testing.T) {
	rl := NewRateLimiter(1, 100)

	if !rl.AllowRun() {
		t.Fatal("first run should be allowed")
	}
	if rl.AllowRun() {
		t.Error("second run should be denied")
	}
	if !rl.AllowCall() {
		t.Error("exhausting the run bucket must not affect calls")
	}
}
