// ABOUTME: Product and build version information
// ABOUTME: Reported in logs, the mirror hello and the sync diagnostic
package version

// Version is overridden at build time with -ldflags "-X ...version.Version=x.y.z".
var Version = "0.1.0"

const (
	Product      = "Dual Display Clock"
	Manufacturer = "dualclock"
)

// String returns "Product vX".
func String() string {
	return Product + " v" + Version
}
