package nanotec

import (
	"fmt"
	"sort"
	"strings"
)

type Register struct {
	Address uint16
	// Width in bits on the wire.
	Width int
	// Ack is set on registers the firmware answers with a set point acknowledge.
	Ack bool
}

type RegisterMap map[string]Register

const (
	RegStatusWord        = "status_word"
	RegOperationModeRead = "operation_mode_read"
	RegControlWord       = "control_word"
	RegOperationMode     = "operation_mode"
	RegInfoOut           = "info_out"
	RegInfoIn            = "info_in"
	RegActualPosition    = "actual_position"
	RegActualSpeed       = "actual_speed"
	RegSensor            = "sensor"
	RegTargetPosition    = "target_position"
	RegTargetSpeed       = "target_speed"
	RegAcceleration      = "acceleration"
	RegDeceleration      = "deceleration"
	RegSearchZeroSpeed   = "search_zero_speed"
)

// pdsRegisters are required by every drive.
var pdsRegisters = []string{RegStatusWord, RegOperationModeRead, RegControlWord, RegOperationMode}

// DefaultRegisters is the mapping the drive programs expose.
func DefaultRegisters() RegisterMap {
	return RegisterMap{
		RegStatusWord:        {Address: 5000, Width: 32},
		RegOperationModeRead: {Address: 5001, Width: 32},
		RegControlWord:       {Address: 6000, Width: 32, Ack: true},
		RegOperationMode:     {Address: 6001, Width: 32},
		RegInfoOut:           {Address: 2014, Width: 32},
		RegActualPosition:    {Address: 2008, Width: 32},
		RegActualSpeed:       {Address: 2010, Width: 32},
		RegSensor:            {Address: 2012, Width: 32},
		RegTargetPosition:    {Address: 3006, Width: 32},
		RegTargetSpeed:       {Address: 3008, Width: 32},
		RegAcceleration:      {Address: 3010, Width: 32},
		RegDeceleration:      {Address: 3012, Width: 32},
		RegInfoIn:            {Address: 3014, Width: 32},
		RegSearchZeroSpeed:   {Address: 3016, Width: 32},
	}
}

// Check returns an error listing every name missing from the map. Only 32 bit registers
// are supported.
func (m RegisterMap) Check(names ...string) error {
	var missing []string
	for _, name := range append(append([]string{}, pdsRegisters...), names...) {
		reg, ok := m[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		if reg.Width != 32 {
			return fmt.Errorf("register %s at %d: unsupported width %d", name, reg.Address, reg.Width)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return fmt.Errorf("register map is missing %s", strings.Join(missing, ", "))
}
