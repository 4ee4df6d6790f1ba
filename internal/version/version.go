// ABOUTME: Build and product identification
// ABOUTME: Reported by the CLI and sent with live session setup
package version

const (
	Version      = "0.3.0"
	Product      = "greetcast"
	Manufacturer = "Greetcast"
)

// String returns "product version"
func String() string {
	return Product + " " + Version
}
