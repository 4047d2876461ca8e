package gpu

import "fmt"

// Result is the status code returned by Device operations. Non-negative
// values are successes, negative values are errors.
type Result int32

const (
	Success    Result = 0
	NotReady   Result = 1
	Timeout    Result = 2
	Suboptimal Result = 3

	ErrorOutOfHostMemory      Result = -1
	ErrorOutOfDeviceMemory    Result = -2
	ErrorInitializationFailed Result = -3
	ErrorDeviceLost           Result = -4
	ErrorSurfaceLost          Result = -5
	ErrorOutOfDate            Result = -6
	ErrorFeatureNotPresent    Result = -7
	ErrorUnknown              Result = -8
)

var resultNames = map[Result]string{
	Success:                   "success",
	NotReady:                  "not ready",
	Timeout:                   "timeout",
	Suboptimal:                "suboptimal",
	ErrorOutOfHostMemory:      "out of host memory",
	ErrorOutOfDeviceMemory:    "out of device memory",
	ErrorInitializationFailed: "initialization failed",
	ErrorDeviceLost:           "device lost",
	ErrorSurfaceLost:          "surface lost",
	ErrorOutOfDate:            "swapchain out of date",
	ErrorFeatureNotPresent:    "feature not present",
	ErrorUnknown:              "unknown error",
}

func (r Result) String() string {
	if s, ok := resultNames[r]; ok {
		return s
	}
	return fmt.Sprintf("result(%d)", int32(r))
}

// IsError reports whether r denotes a failure. Timeout, NotReady and
// Suboptimal are statuses, not errors.
func (r Result) IsError() bool {
	return r < 0
}

// Stale reports whether r means the swapchain no longer matches the surface.
func (r Result) Stale() bool {
	return r == ErrorOutOfDate || r == Suboptimal
}
