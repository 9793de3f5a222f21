package nanotec

// State is a power drive system state decoded from the status word.
type State int

const (
	NotReadyToSwitchOn State = iota
	SwitchOnDisabled
	ReadyToSwitchOn
	SwitchedOn
	OperationEnabled
	QuickStopActive
	FaultReactionActive
	Fault
	Unknown
)

var stateNames = [...]string{
	"NotReadyToSwitchOn",
	"SwitchOnDisabled",
	"ReadyToSwitchOn",
	"SwitchedOn",
	"OperationEnabled",
	"QuickStopActive",
	"FaultReactionActive",
	"Fault",
	"Unknown",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "Unknown"
	}
	return stateNames[s]
}

// DecodeState maps a status word onto its state. Only the low nibble and bits 5 and 6
// take part.
func DecodeState(status uint16) State {
	switch status & 0xF {
	case 0x0:
		if status&(1<<6) != 0 {
			return SwitchOnDisabled
		}
		return NotReadyToSwitchOn
	case 0x1:
		return ReadyToSwitchOn
	case 0x3:
		return SwitchedOn
	case 0x7:
		if status&(1<<5) != 0 {
			return OperationEnabled
		}
		return QuickStopActive
	case 0xF:
		return FaultReactionActive
	case 0x8:
		return Fault
	}
	return Unknown
}

// Control words of the enable sequence.
const (
	ControlFaultReset uint16 = 0x80
	ControlDisable    uint16 = 0x00
	ControlShutdown   uint16 = 0x06
	ControlSwitchOn   uint16 = 0x07
	ControlEnable     uint16 = 0x0F
)

// Operation modes.
const (
	ModeProfilePosition int32 = 1
	ModeVelocity        int32 = 3
	ModeHoming          int32 = 6
)

const (
	statusSetPointAck = 12
)

// positionControlWord builds the control word that starts a profile position motion.
// The operation mode specifier sits on bits 4 to 6 above the enable bits.
func positionControlWord(relative bool) uint16 {
	oms := uint16(0b011)
	if relative {
		oms = 0b111
	}
	return oms<<4 | ControlEnable
}
