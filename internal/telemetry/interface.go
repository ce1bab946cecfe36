package telemetry

// Sample is one cycle's telemetry record for one drive.
type Sample struct {
	Timestamp  int64
	Cycle      uint64
	JitterNs   int64
	Position   uint16
	DriveState string
	ActualPos  int32
	ActualVel  int32
	ActualTorq int16
}

// Collector accepts samples from the control loop without ever blocking
// it and persists them in the background.
type Collector interface {
	// Offer hands a sample to the collector. Returns false when the
	// collector is saturated and the sample was dropped.
	Offer(s Sample) bool
	Close() error
}

// Repository is the persistence backend for samples.
type Repository interface {
	Record(s *Sample) error
	Close() error
}

// Config holds the telemetry storage settings.
type Config struct {
	DBPath     string
	BatchSize  int
	QueueDepth int
}
