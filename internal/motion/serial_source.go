// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package motion

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"

	serial "github.com/jacobsa/go-serial/serial"
)

// SerialSource reads "x,y,z" lines (m/s²) from a serial-attached
// accelerometer. Blank lines and lines starting with '#' are skipped.
type SerialSource struct {
	port   io.ReadWriteCloser
	reader *bufio.Reader
}

// OpenSerialSource opens portName at baudRate, 8N1.
func OpenSerialSource(portName string, baudRate int) (*SerialSource, error) {
	serialOpts := serial.OpenOptions{
		PortName:              portName,
		BaudRate:              uint(baudRate),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}

	port, err := serial.Open(serialOpts)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", portName, err)
	}
	log.Printf("motion: serial port opened on %s at %d baud", portName, baudRate)

	return NewSerialSource(port), nil
}

// NewSerialSource reads lines from an already open port.
func NewSerialSource(port io.ReadWriteCloser) *SerialSource {
	return &SerialSource{port: port, reader: bufio.NewReader(port)}
}

// Next blocks until the next valid line arrives.
func (s *SerialSource) Next() (Reading, error) {
	for {
		line, err := s.reader.ReadString('\n')

		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "#") {
			r, perr := parseReadingLine(line)
			if perr == nil {
				return r, nil
			}
			// partial lines right after opening the port are common
			log.Printf("motion: skipping serial line %q: %v", line, perr)
		}

		if err != nil {
			return Reading{}, fmt.Errorf("serial read: %w", err)
		}
	}
}

// Close closes the port.
func (s *SerialSource) Close() error {
	return s.port.Close()
}

func parseReadingLine(line string) (Reading, error) {
	fields := strings.FieldsFunc(line, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\t'
	})
	if len(fields) != 3 {
		return Reading{}, fmt.Errorf("want 3 fields, got %d", len(fields))
	}

	var v [3]float64
	for i, f := range fields {
		val, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return Reading{}, fmt.Errorf("field %d: %w", i, err)
		}
		v[i] = val
	}
	return Reading{X: v[0], Y: v[1], Z: v[2]}, nil
}
