// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package motion

import (
	"fmt"

	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/devices/v3/mpu9250"
	"periph.io/x/host/v3"
)

// accelReader is the part of the MPU9250 driver the source needs.
type accelReader interface {
	GetAccelerationX() (int16, error)
	GetAccelerationY() (int16, error)
	GetAccelerationZ() (int16, error)
}

// DeviceSource reads the accelerometer of an MPU9250 on SPI.
type DeviceSource struct {
	imu   accelReader
	scale float64
}

// NewDeviceSource initializes the MPU9250 on spiDev with chip select csPin.
// scale converts raw counts to m/s².
func NewDeviceSource(spiDev, csPin string, scale float64) (*DeviceSource, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}

	cs := gpioreg.ByName(csPin)
	if cs == nil {
		return nil, fmt.Errorf("IMU CS pin %q not found", csPin)
	}

	tr, err := mpu9250.NewSpiTransport(spiDev, cs)
	if err != nil {
		return nil, fmt.Errorf("IMU SPI transport (%s): %w", spiDev, err)
	}

	imu, err := mpu9250.New(*tr)
	if err != nil {
		return nil, fmt.Errorf("IMU new device: %w", err)
	}

	if err := imu.Init(); err != nil {
		return nil, fmt.Errorf("IMU init: %w", err)
	}

	return &DeviceSource{imu: imu, scale: scale}, nil
}

// Next reads one accelerometer sample.
func (s *DeviceSource) Next() (Reading, error) {
	ax, err := s.imu.GetAccelerationX()
	if err != nil {
		return Reading{}, fmt.Errorf("IMU acc X: %w", err)
	}
	ay, err := s.imu.GetAccelerationY()
	if err != nil {
		return Reading{}, fmt.Errorf("IMU acc Y: %w", err)
	}
	az, err := s.imu.GetAccelerationZ()
	if err != nil {
		return Reading{}, fmt.Errorf("IMU acc Z: %w", err)
	}

	return Reading{
		X: float64(ax) * s.scale,
		Y: float64(ay) * s.scale,
		Z: float64(az) * s.scale,
	}, nil
}
