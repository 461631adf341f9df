// Copyright 2026 SmartBin Authors
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
//

//go:build !linux

package environment

import (
	"runtime"

	"github.com/rs/zerolog"

	"github.com/smartbin/BinWorker/pkg/config"
)

// AutoDetectBridgeType detects the default bridge type based on the environment.
// GPIO hardware is only supported on linux.
func AutoDetectBridgeType(log zerolog.Logger) string {
	return config.BridgeVirtual
}

// PlatformInfo describes the host the worker runs on.
type PlatformInfo struct {
	OS      string `json:"os"`
	Release string `json:"release"`
	Machine string `json:"machine"`
}

// String returns a human readable platform description.
func (p PlatformInfo) String() string {
	return p.OS + " " + p.Machine
}

// Platform returns information about the current host.
func Platform() PlatformInfo {
	return PlatformInfo{OS: runtime.GOOS, Machine: runtime.GOARCH}
}
