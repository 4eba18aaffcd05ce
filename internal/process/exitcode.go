package process

// ExitCode is the control signal a container's exit carries back to its
// supervisor. The values for OK/SIGTERM/SIGKILL follow the convention the
// Docker Engine API itself uses for `ContainerWait`'s StatusCode (raw exit
// status, with a signal-terminated process reported as 128+signal). The
// domain codes below that have no upstream numeric definition in the
// retrieved source are assigned stable sentinels starting at 100.
type ExitCode int

const (
	OK      ExitCode = 0
	SIGTERM ExitCode = 143 // 128 + 15
	SIGKILL ExitCode = 137 // 128 + 9

	MissionUploadFail ExitCode = 100
	StreamReadFailure ExitCode = 101
	VehicleTimedOut   ExitCode = 102
	PrematureLanding  ExitCode = 103
	UnknownVehicle    ExitCode = 104
	PX4SimDesync      ExitCode = 105
	TooMuchWind       ExitCode = 106

	// UndefinedError is not a container exit code; it is reported when the
	// halt-time container stop itself fails.
	UndefinedError ExitCode = -1
)

// translation is the outcome of mapping a container's exit code to a
// terminal Process state, mirroring process_manager.py's __code_to_result.
type translation struct {
	status  Status
	message string
	// reported is whether the error code should be surfaced on the record;
	// spec.md §4.2 reports error_code only when status is not TERMINATED or
	// HALTED.
	reported bool
}

func translateExitCode(code ExitCode) translation {
	switch code {
	case OK:
		return translation{status: Terminated}
	case SIGTERM, SIGKILL:
		return translation{status: Halted}
	case MissionUploadFail:
		return translation{status: Error, message: "Mission upload fail.", reported: true}
	case StreamReadFailure:
		return translation{status: Error, message: "Failed in starting up simulation stack.", reported: true}
	case VehicleTimedOut:
		return translation{status: Error, message: "Vehicle Mavlink connection timed out!", reported: true}
	case PrematureLanding:
		return translation{status: Error, message: "Vehicle has landed before reaching landing spot. Check vehicle configuration!", reported: true}
	case UnknownVehicle:
		return translation{status: Error, message: "Unknown vehicle model, check available vehicles.", reported: true}
	case PX4SimDesync:
		return translation{status: Error, message: "PX4 simulation desync -- server may be overloaded.", reported: true}
	case TooMuchWind:
		return translation{status: Error, message: "There is too much wind to fly safely.", reported: true}
	default:
		return translation{status: Error, message: "Container exited with an unrecognised status.", reported: true}
	}
}
