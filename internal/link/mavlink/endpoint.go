package mavlink

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bluenviron/gomavlib/v3"
)

// DefaultSerialBaud is used when a serial address carries no baud rate.
const DefaultSerialBaud = 57600

// parseEndpoint maps a link address to a gomavlib endpoint.
//
//	udp:host:port      UDP client (SITL default output)
//	udpin:host:port    UDP server
//	tcp:host:port      TCP client
//	serial:dev[:baud]  serial port
func parseEndpoint(address string) (gomavlib.EndpointConf, error) {
	scheme, rest, found := strings.Cut(address, ":")
	if !found || rest == "" {
		return nil, fmt.Errorf("invalid link address %q", address)
	}

	switch scheme {
	case "udp":
		return gomavlib.EndpointUDPClient{Address: rest}, nil
	case "udpin":
		return gomavlib.EndpointUDPServer{Address: rest}, nil
	case "tcp":
		return gomavlib.EndpointTCPClient{Address: rest}, nil
	case "serial":
		device, baudStr, hasBaud := strings.Cut(rest, ":")
		baud := DefaultSerialBaud
		if hasBaud {
			b, err := strconv.Atoi(baudStr)
			if err != nil || b <= 0 {
				return nil, fmt.Errorf("invalid baud rate %q in %q", baudStr, address)
			}
			baud = b
		}
		return gomavlib.EndpointSerial{Device: device, Baud: baud}, nil
	default:
		return nil, fmt.Errorf("unsupported link scheme %q", scheme)
	}
}
