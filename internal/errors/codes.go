package errors

// Common error codes
const (
	// System errors
	ErrInternal        ErrorCode = "internal_error"
	ErrInvalidArgument ErrorCode = "invalid_argument"
	ErrNotImplemented  ErrorCode = "not_implemented"

	// Configuration errors
	ErrInvalidConfig   ErrorCode = "invalid_configuration"
	ErrBindFlags       ErrorCode = "bind_flags_failed"
	ErrReadConfig      ErrorCode = "read_config_failed"
	ErrInvalidPeriod   ErrorCode = "invalid_cycle_period"
	ErrInvalidLogLevel ErrorCode = "invalid_log_level"

	// Real-time worker errors
	ErrMissingLoopHook  ErrorCode = "missing_loop_hook"
	ErrInvalidAffinity  ErrorCode = "invalid_affinity"
	ErrInvalidPolicy    ErrorCode = "invalid_sched_policy"
	ErrDeadlineMissed   ErrorCode = "rt_deadline_missed"
	ErrWorkerNotArmed   ErrorCode = "worker_not_armed"
	ErrWorkerActive     ErrorCode = "worker_already_active"
	ErrMemoryPinFailed  ErrorCode = "memory_pin_failed"
	ErrSchedAttrFailed  ErrorCode = "sched_attr_failed"
	ErrAffinityFailed   ErrorCode = "affinity_failed"

	// Fieldbus errors
	ErrBusAttach        ErrorCode = "bus_attach_failed"
	ErrBusExchange      ErrorCode = "bus_exchange_failed"
	ErrBusConfigRequest ErrorCode = "bus_config_request_failed"
	ErrUnknownSlave     ErrorCode = "unknown_slave_position"

	// Geometry errors
	ErrReadGeometry    ErrorCode = "read_geometry_failed"
	ErrInvalidGeometry ErrorCode = "invalid_geometry"

	// Telemetry errors
	ErrInitTelemetry    ErrorCode = "init_telemetry_failed"
	ErrRecordTelemetry  ErrorCode = "record_telemetry_failed"
	ErrCloseTelemetry   ErrorCode = "close_telemetry_failed"
	ErrInvalidDBPath    ErrorCode = "invalid_database_path"
	ErrStorageInit      ErrorCode = "storage_init_failed"

	// Application errors
	ErrInitApp        ErrorCode = "init_app_failed"
	ErrAlreadyRunning ErrorCode = "already_running"
	ErrMainLoop       ErrorCode = "main_loop_failed"
)

// Common error messages
var errorMessages = map[ErrorCode]string{
	ErrInternal:         "Internal error occurred",
	ErrInvalidArgument:  "Invalid argument provided",
	ErrNotImplemented:   "Operation not implemented",
	ErrInvalidConfig:    "Invalid configuration",
	ErrBindFlags:        "Failed to bind flags",
	ErrReadConfig:       "Failed to read configuration",
	ErrInvalidPeriod:    "Invalid cycle period",
	ErrInvalidLogLevel:  "Invalid log level",
	ErrMissingLoopHook:  "No loop hook set",
	ErrInvalidAffinity:  "Invalid CPU affinity",
	ErrInvalidPolicy:    "Invalid scheduling policy",
	ErrDeadlineMissed:   "Real-time deadline missed",
	ErrWorkerNotArmed:   "Worker is not armed",
	ErrWorkerActive:     "Worker is already active",
	ErrMemoryPinFailed:  "Failed to pin process memory",
	ErrSchedAttrFailed:  "Failed to set scheduling attributes",
	ErrAffinityFailed:   "Failed to set CPU affinity",
	ErrBusAttach:        "Failed to attach slave to bus",
	ErrBusExchange:      "Bus exchange failed",
	ErrBusConfigRequest: "Failed to register bus configuration request",
	ErrUnknownSlave:     "Unknown slave position",
	ErrReadGeometry:     "Failed to read geometry file",
	ErrInvalidGeometry:  "Invalid geometry parameters",
	ErrInitTelemetry:    "Failed to initialize telemetry",
	ErrRecordTelemetry:  "Failed to record telemetry data",
	ErrCloseTelemetry:   "Failed to close telemetry connection",
	ErrInvalidDBPath:    "Invalid database path",
	ErrStorageInit:      "Failed to initialize storage",
	ErrInitApp:          "Failed to initialize application",
	ErrAlreadyRunning:   "Another instance is already running",
	ErrMainLoop:         "Error in main loop",
}

// GetErrorMessage returns the message for a given error code
func GetErrorMessage(code ErrorCode) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}

	return string(code)
}
