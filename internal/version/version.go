// ABOUTME: Version information for the Resonix node
// ABOUTME: BuildTime is stamped at link time with -ldflags
package version

import (
	"strconv"
	"time"
)

const (
	Version      = "0.3.0"
	Product      = "Resonix"
	Manufacturer = "Resonix Audio"
)

// BuildTime is a unix timestamp in milliseconds, set with
// -ldflags "-X github.com/resonix-audio/resonix-go/internal/version.BuildTime=..."
var BuildTime = ""

var started = time.Now()

// BuildTimeMillis returns BuildTime, or the process start time when the
// binary was built without a stamp
func BuildTimeMillis() int64 {
	if ms, err := strconv.ParseInt(BuildTime, 10, 64); err == nil {
		return ms
	}
	return started.UnixMilli()
}

// String formats the product and version for logs and --version
func String() string {
	return Product + " " + Version
}
