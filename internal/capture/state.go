package capture

// State names a step of the capture flow. Used for logging and metric labels.
type State string

const (
	StateStart              State = "start"
	StateIdempotentHit      State = "idempotent_hit"
	StateCapturing          State = "capturing"
	StateRecoveredDuplicate State = "recovered_duplicate"
	StateCaptured           State = "captured"
	StateFulfilled          State = "fulfilled"
	StateCaptureFailed      State = "capture_failed"
)
