/*
flag Package set up cli flags shared across services

Usage:

	Flags listed in this package are shared across boundaries and service-agnostic
	For service dependent flags please define in their respective package
*/

package flag

import (
	"flag"
)

const (
	APIServer = "api_server"
	Sweeper   = "sweeper"
)

var (
	IsDevelopment bool
	ServiceName   string
	ByPassAuth    bool
)

func init() {
	flag.BoolVar(&IsDevelopment, "dev", true, "set to true if the current run is for development. default value is true")
	flag.StringVar(&ServiceName, "service", APIServer, "'api_server' or 'sweeper'")
	flag.BoolVar(&ByPassAuth, "no_auth", false, "set to true to skip session auth on API routes")
}
