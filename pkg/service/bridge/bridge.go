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

package bridge

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/smartbin/BinWorker/model"
	"github.com/smartbin/BinWorker/pkg/config"
	"github.com/smartbin/BinWorker/pkg/environment"
)

// New creates the bridge of the given type.
// Type "auto" selects the bridge based on the environment.
func New(bridgeType string, log zerolog.Logger, opts Options) (API, error) {
	if bridgeType == config.BridgeAuto || bridgeType == "" {
		bridgeType = environment.AutoDetectBridgeType(log)
	}
	log.Info().Str("type", bridgeType).Msg("Creating bridge")
	switch bridgeType {
	case config.BridgeRPI:
		return NewRaspberryPiBridge(log, opts)
	case config.BridgePeriph:
		return NewPeriphBridge(log, opts)
	case config.BridgeVirtual:
		return NewVirtualBridge(opts, nil), nil
	default:
		return nil, errors.Wrapf(model.ValidationError, "unknown bridge type '%s'", bridgeType)
	}
}
