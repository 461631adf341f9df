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

package environment

import (
	"bytes"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"

	"github.com/smartbin/BinWorker/pkg/config"
)

var deviceTreeModelPath = "/proc/device-tree/model"

// AutoDetectBridgeType detects the default bridge type based on the environment.
func AutoDetectBridgeType(log zerolog.Logger) string {
	if model, err := os.ReadFile(deviceTreeModelPath); err == nil {
		if strings.Contains(string(model), "Raspberry Pi") {
			// periph.io maps BCM numbers itself & sets pull resistors
			log.Debug().Str("model", strings.Trim(string(model), "\x00\n ")).Msg("Detected Raspberry Pi")
			return config.BridgePeriph
		}
	}
	machine := Platform().Machine
	if strings.HasPrefix(machine, "arm") || machine == "aarch64" {
		log.Debug().Str("machine", machine).Msg("Detected ARM board")
		return config.BridgePeriph
	}
	log.Info().Str("machine", machine).Msg("No GPIO hardware detected, using virtual bridge")
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
	return strings.TrimSpace(p.OS + " " + p.Release + " " + p.Machine)
}

// Platform returns information about the current host.
func Platform() PlatformInfo {
	var name unix.Utsname
	if err := unix.Uname(&name); err != nil {
		return PlatformInfo{OS: "linux"}
	}
	return PlatformInfo{
		OS:      utsString(name.Sysname[:]),
		Release: utsString(name.Release[:]),
		Machine: utsString(name.Machine[:]),
	}
}

func utsString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return strings.TrimSpace(string(b))
}
