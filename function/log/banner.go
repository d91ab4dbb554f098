package log

import "github.com/ternarybob/banner"

// Banner prints the startup banner.
func Banner(version string) {
	banner.PrintSimple("CTFDumper", version)
}
