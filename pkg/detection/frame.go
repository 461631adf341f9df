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

package detection

import (
	"image"
	"time"
)

// Frame is a single captured camera image.
type Frame struct {
	Image image.Image
	// Time of capture
	Time time.Time
	// Name of the camera that captured the frame
	Source string
}

// Size returns the width & height of the frame.
func (f *Frame) Size() (int, int) {
	b := f.Image.Bounds()
	return b.Dx(), b.Dy()
}
