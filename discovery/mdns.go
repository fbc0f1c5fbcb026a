// Package discovery finds scribble hubs on the local network over mDNS.
package discovery

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/mdns"
)

const ServiceType = "_scribble._tcp"

var ErrNotFound = errors.New("no hub found")

// Advertise announces a hub listening on port. Call Shutdown on the returned
// server to withdraw it.
func Advertise(instance string, port int) (*mdns.Server, error) {
	if instance == "" {
		host, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("could not get hostname: %w", err)
		}
		instance = host
	}

	service, err := mdns.NewMDNSService(instance, ServiceType, "", "", port, nil, []string{"scribble"})
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return nil, fmt.Errorf("failed to start mDNS server: %w", err)
	}

	return server, nil
}

// Browse returns the WebSocket URL of the first hub that answers within
// timeout.
func Browse(timeout time.Duration) (string, error) {
	entries := make(chan *mdns.ServiceEntry, 8)
	found := make(chan string, 1)

	go func() {
		for e := range entries {
			if e.AddrV4 == nil || e.Port == 0 {
				continue
			}

			select {
			case found <- HubURL(e.AddrV4.String(), e.Port):
			default:
			}
		}
	}()

	params := mdns.DefaultParams(ServiceType)
	params.Entries = entries
	params.Timeout = timeout
	params.DisableIPv6 = true

	err := mdns.Query(params)
	close(entries)
	if err != nil {
		return "", fmt.Errorf("mdns query: %w", err)
	}

	select {
	case u := <-found:
		return u, nil
	case <-time.After(100 * time.Millisecond):
		return "", ErrNotFound
	}
}

// HubURL is the join endpoint of a hub at host:port.
func HubURL(host string, port int) string {
	return fmt.Sprintf("ws://%v:%v/", host, port)
}
