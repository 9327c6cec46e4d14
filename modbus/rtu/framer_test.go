// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/ffutop/d3net-gateway/modbus"
)

func TestCalculateResponseLength(t *testing.T) {
	tests := []struct {
		name string
		adu  []byte
		want int
	}{
		{"ReadInputRegisters", []byte{0x01, 0x04, 0x07, 0xD0, 0x00, 0x06}, 4 + 1 + 12},
		{"ReadHoldingRegisters", []byte{0x01, 0x03, 0x07, 0xD0, 0x00, 0x03}, 4 + 1 + 6},
		{"WriteMultipleRegisters", []byte{0x01, 0x10, 0x07, 0xD0, 0x00, 0x03}, 8},
		{"Unknown", []byte{0x01, 0x99, 0x00, 0x00, 0x00, 0x00}, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CalculateResponseLength(tt.adu); got != tt.want {
				t.Errorf("CalculateResponseLength() = %v, want %v", got, tt.want)
			}
		})
	}
}

func frame(t *testing.T, slaveID byte, pdu modbus.ProtocolDataUnit) []byte {
	t.Helper()
	raw, err := (&ApplicationDataUnit{SlaveID: slaveID, Pdu: pdu}).Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	return raw
}

func TestReadResponse(t *testing.T) {
	deadline := time.Now().Add(time.Second)

	t.Run("SkipsLeadingNoise", func(t *testing.T) {
		want := frame(t, 0x01, modbus.ProtocolDataUnit{FunctionCode: 0x04, Data: []byte{0x02, 0x00, 0xD7}})
		r := bytes.NewReader(append([]byte{0x00, 0x7F}, want...))

		got, err := ReadResponse(0x01, 0x04, r, deadline)
		if err != nil {
			t.Fatalf("ReadResponse failed: %v", err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("frame mismatch.\nWant: %X\nGot:  %X", want, got)
		}
	})

	t.Run("WriteEcho", func(t *testing.T) {
		want := frame(t, 0x01, modbus.ProtocolDataUnit{FunctionCode: 0x10, Data: []byte{0x07, 0xD0, 0x00, 0x03}})
		got, err := ReadResponse(0x01, 0x10, bytes.NewReader(want), deadline)
		if err != nil {
			t.Fatalf("ReadResponse failed: %v", err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("frame mismatch.\nWant: %X\nGot:  %X", want, got)
		}
	})

	t.Run("Exception", func(t *testing.T) {
		want := frame(t, 0x01, modbus.Exception(0x03, modbus.ExceptionCodeIllegalDataAddress))
		got, err := ReadResponse(0x01, 0x03, bytes.NewReader(want), deadline)
		if err != nil {
			t.Fatalf("ReadResponse failed: %v", err)
		}
		adu, err := Decode(got)
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		var exc *modbus.ExceptionError
		if err := modbus.CheckResponse(0x03, adu.Pdu); !errors.As(err, &exc) {
			t.Fatalf("expected ExceptionError, got %v", err)
		}
		if exc.ExceptionCode != modbus.ExceptionCodeIllegalDataAddress {
			t.Errorf("exception code = %d", exc.ExceptionCode)
		}
	})

	t.Run("ZeroLength", func(t *testing.T) {
		r := bytes.NewReader([]byte{0x01, 0x03, 0x00})
		var lerr *InvalidLengthError
		if _, err := ReadResponse(0x01, 0x03, r, deadline); !errors.As(err, &lerr) {
			t.Fatalf("expected InvalidLengthError, got %v", err)
		}
	})

	t.Run("Deadline", func(t *testing.T) {
		r := bytes.NewReader([]byte{0x01})
		if _, err := ReadResponse(0x01, 0x03, r, time.Now().Add(-time.Second)); !errors.Is(err, ErrRequestTimedOut) {
			t.Fatalf("expected ErrRequestTimedOut, got %v", err)
		}
	})
}
