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
	"fmt"
	"os"
	"sync"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

const (
	// From  /usr/include/linux/i2c-dev.h:
	// ioctl signals
	i2cSlave = 0x0703
	i2cFuncs = 0x0705
	i2cSMBus = 0x0720
	// Read/write markers
	i2cSMBusRead  = 1
	i2cSMBusWrite = 0

	// From  /usr/include/linux/i2c.h:
	// Adapter functionality
	i2cFuncSMBusReadByteData  = 0x00080000
	i2cFuncSMBusWriteByteData = 0x00100000

	// Transaction types
	i2cSMBusByteData = 2
)

type i2cSmbusIoctlData struct {
	readWrite byte
	command   byte
	size      uint32
	data      uintptr
}

type i2cDevice struct {
	address uint8
	mutex   sync.Mutex
	file    *os.File
	funcs   uint64 // adapter functionality mask
}

// newI2CDevice returns accessors the the I2C address at the given location & address.
func newI2CDevice(location string, address uint8) (*i2cDevice, error) {
	d := &i2cDevice{
		address: address,
	}

	var err error
	if d.file, err = os.OpenFile(location, os.O_RDWR, os.ModeDevice); err != nil {
		return nil, err
	}
	if err := d.ioctl(i2cFuncs, uintptr(unsafe.Pointer(&d.funcs))); err != nil {
		d.file.Close()
		return nil, errors.Wrap(err, "querying functionality failed")
	}
	if err := d.ioctl(i2cSlave, uintptr(address)); err != nil {
		d.file.Close()
		return nil, errors.Wrapf(err, "setting address (0x%0x) failed", address)
	}
	return d, nil
}

func (d *i2cDevice) closeFile() error {
	return d.file.Close()
}

// Read a byte from given register
func (d *i2cDevice) ReadByteReg(reg uint8) (uint8, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.funcs&i2cFuncSMBusReadByteData == 0 {
		return 0, fmt.Errorf("SMBus read byte data not supported")
	}
	var data uint8
	if err := d.smbusAccess(i2cSMBusRead, reg, i2cSMBusByteData, uintptr(unsafe.Pointer(&data))); err != nil {
		return 0, errors.Wrapf(err, "readByteData[0x%0x](0x%0x) failed", d.address, reg)
	}
	return data, nil
}

// Write a byte to given register
func (d *i2cDevice) WriteByteReg(reg uint8, val uint8) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.funcs&i2cFuncSMBusWriteByteData == 0 {
		return fmt.Errorf("SMBus write byte data not supported")
	}
	data := val
	if err := d.smbusAccess(i2cSMBusWrite, reg, i2cSMBusByteData, uintptr(unsafe.Pointer(&data))); err != nil {
		return errors.Wrapf(err, "writeByteData[0x%0x](0x%0x, 0x%0x) failed", d.address, reg, val)
	}
	return nil
}

func (d *i2cDevice) smbusAccess(readWrite byte, command byte, size uint32, data uintptr) error {
	smbus := &i2cSmbusIoctlData{
		readWrite: readWrite,
		command:   command,
		size:      size,
		data:      data,
	}
	return d.ioctl(i2cSMBus, uintptr(unsafe.Pointer(smbus)))
}

func (d *i2cDevice) ioctl(req, arg uintptr) error {
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, d.file.Fd(), req, arg); errno != 0 {
		return fmt.Errorf("ioctl failed with errno %v", errno)
	}
	return nil
}
