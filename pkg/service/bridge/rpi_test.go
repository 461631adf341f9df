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
	"os"
	"path/filepath"
	"testing"
)

func writeChip(t *testing.T, root, name, base, label string) {
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "base"), []byte(base+"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "label"), []byte(label+"\n"), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestSysfsGPIOBase(t *testing.T) {
	tests := []struct {
		name   string
		chips  [][3]string
		expect int
	}{
		{"no chips", nil, 0},
		{"legacy kernel", [][3]string{{"gpiochip0", "0", "pinctrl-bcm2711"}, {"gpiochip504", "504", "raspberrypi-exp-gpio"}}, 0},
		{"recent kernel", [][3]string{{"gpiochip512", "512", "pinctrl-bcm2711"}, {"gpiochip570", "570", "raspberrypi-exp-gpio"}}, 512},
		{"pi 5", [][3]string{{"gpiochip512", "512", "gpio-brcmstb@107d508500"}, {"gpiochip571", "571", "pinctrl-rp1"}}, 571},
		{"unknown labels", [][3]string{{"gpiochip600", "600", "foo"}, {"gpiochip512", "512", "bar"}}, 512},
	}
	for _, test := range tests {
		root := t.TempDir()
		for _, c := range test.chips {
			writeChip(t, root, c[0], c[1], c[2])
		}
		base, err := sysfsGPIOBase(root)
		if err != nil {
			t.Errorf("%s: sysfsGPIOBase failed: %s", test.name, err)
		} else if base != test.expect {
			t.Errorf("%s: expected base %d, got %d", test.name, test.expect, base)
		}
	}
}

func TestSysfsPin(t *testing.T) {
	p := &piBridge{base: 512}
	if n := p.sysfsPin(17); n != 529 {
		t.Errorf("Expected BCM 17 at sysfs 529, got %d", n)
	}
}
