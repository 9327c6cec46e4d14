// Copyright (c) 2014 Quoc-Viet Nguyen. All rights reserved.
// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package modbus

import (
	"encoding/binary"
	"fmt"
)

// Function Codes
const (
	FuncCodeReadCoils                  = 0x01
	FuncCodeReadDiscreteInputs         = 0x02
	FuncCodeReadHoldingRegisters       = 0x03
	FuncCodeReadInputRegisters         = 0x04
	FuncCodeWriteSingleCoil            = 0x05
	FuncCodeWriteSingleRegister        = 0x06
	FuncCodeWriteMultipleCoils         = 0x0F
	FuncCodeWriteMultipleRegisters     = 0x10
	FuncCodeMaskWriteRegister          = 0x16
	FuncCodeReadWriteMultipleRegisters = 0x17
	FuncCodeReadFIFOQueue              = 0x18
	FuncCodeReadDeviceIdentification   = 0x2B
)

// Exception Codes
const (
	ExceptionCodeIllegalFunction                    = 1
	ExceptionCodeIllegalDataAddress                 = 2
	ExceptionCodeIllegalDataValue                   = 3
	ExceptionCodeServerDeviceFailure                = 4
	ExceptionCodeAcknowledge                        = 5
	ExceptionCodeServerDeviceBusy                   = 6
	ExceptionCodeMemoryParityError                  = 8
	ExceptionCodeGatewayPathUnavailable             = 10
	ExceptionCodeGatewayTargetDeviceFailedToRespond = 11
)

// Register limits per request.
const (
	MaxReadRegisters  = 125
	MaxWriteRegisters = 123
)

// ProtocolDataUnit (PDU) is independent of underlying communication layers.
type ProtocolDataUnit struct {
	FunctionCode byte
	Data         []byte
}

// IsException reports whether the PDU carries an exception response.
func (pdu ProtocolDataUnit) IsException() bool {
	return pdu.FunctionCode&0x80 != 0
}

// ExceptionError is returned when the slave answers with an exception PDU.
type ExceptionError struct {
	FunctionCode  byte
	ExceptionCode byte
}

func (e *ExceptionError) Error() string {
	var name string
	switch e.ExceptionCode {
	case ExceptionCodeIllegalFunction:
		name = "illegal function"
	case ExceptionCodeIllegalDataAddress:
		name = "illegal data address"
	case ExceptionCodeIllegalDataValue:
		name = "illegal data value"
	case ExceptionCodeServerDeviceFailure:
		name = "server device failure"
	case ExceptionCodeAcknowledge:
		name = "acknowledge"
	case ExceptionCodeServerDeviceBusy:
		name = "server device busy"
	case ExceptionCodeMemoryParityError:
		name = "memory parity error"
	case ExceptionCodeGatewayPathUnavailable:
		name = "gateway path unavailable"
	case ExceptionCodeGatewayTargetDeviceFailedToRespond:
		name = "gateway target device failed to respond"
	default:
		name = "unknown"
	}
	return fmt.Sprintf("modbus: exception '%v' (%s), function '%v'", e.ExceptionCode, name, e.FunctionCode&0x7F)
}

// Exception builds the exception PDU for a request function code.
func Exception(funcCode, code byte) ProtocolDataUnit {
	return ProtocolDataUnit{
		FunctionCode: funcCode | 0x80,
		Data:         []byte{code},
	}
}

// CheckResponse verifies a response PDU against the request function code.
func CheckResponse(funcCode byte, resp ProtocolDataUnit) error {
	if resp.FunctionCode == funcCode|0x80 {
		if len(resp.Data) < 1 {
			return fmt.Errorf("modbus: exception response of function '%v' has no code", funcCode)
		}
		return &ExceptionError{FunctionCode: resp.FunctionCode, ExceptionCode: resp.Data[0]}
	}
	if resp.FunctionCode != funcCode {
		return fmt.Errorf("modbus: response function code '%v' does not match request '%v'", resp.FunctionCode, funcCode)
	}
	return nil
}

// BytesToRegisters decodes big-endian register bytes.
func BytesToRegisters(data []byte) []uint16 {
	regs := make([]uint16, len(data)/2)
	for i := range regs {
		regs[i] = binary.BigEndian.Uint16(data[i*2:])
	}
	return regs
}

// RegistersToBytes encodes registers as big-endian bytes.
func RegistersToBytes(regs []uint16) []byte {
	data := make([]byte, len(regs)*2)
	for i, r := range regs {
		binary.BigEndian.PutUint16(data[i*2:], r)
	}
	return data
}
