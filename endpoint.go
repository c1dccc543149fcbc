// Copyright 2022 The OpenZipkin Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package httptracing

import (
	"net"
	"strconv"

	zipkin "github.com/openzipkin/zipkin-go"
	"github.com/openzipkin/zipkin-go/model"
)

// DefaultServiceName is used when no service name is configured.
const DefaultServiceName = "unknown"

// NewEndpoint takes the hostport and service name that represent this
// service, and returns the local endpoint attached to every span it emits.
// The host is resolved into an IPv4 and/or IPv6 address. An empty or
// unspecified host falls back to the loopback address.
func NewEndpoint(serviceName, hostPort string) (*model.Endpoint, error) {
	if serviceName == "" {
		serviceName = DefaultServiceName
	}
	host, port := "", "0"
	if hostPort != "" {
		var err error
		if host, port, err = net.SplitHostPort(hostPort); err != nil {
			return nil, err
		}
	}
	if ip := net.ParseIP(host); host == "" || (ip != nil && ip.IsUnspecified()) {
		host = loopback.String()
	}
	return zipkin.NewEndpoint(serviceName, net.JoinHostPort(host, port))
}

var loopback = net.IPv4(127, 0, 0, 1)

// EndpointFromAddr builds the local endpoint from the address a server is
// bound to. A nil or unspecified address is reported as loopback, keeping
// the bound port.
func EndpointFromAddr(serviceName string, addr net.Addr) *model.Endpoint {
	if serviceName == "" {
		serviceName = DefaultServiceName
	}
	e := &model.Endpoint{ServiceName: serviceName, IPv4: loopback.To4()}

	var (
		ip   net.IP
		port int
	)
	switch a := addr.(type) {
	case *net.TCPAddr:
		ip, port = a.IP, a.Port
	case *net.UDPAddr:
		ip, port = a.IP, a.Port
	}
	if port > 0 && port <= 0xffff {
		e.Port = uint16(port)
	}
	if ip == nil || ip.IsUnspecified() {
		return e
	}
	if ip4 := ip.To4(); ip4 != nil {
		e.IPv4 = ip4
	} else {
		e.IPv4 = nil
		e.IPv6 = ip.To16()
	}
	return e
}

// PeerEndpoint describes the remote side of a connection, or returns nil
// when addr carries no usable IP address.
func PeerEndpoint(addr net.Addr) *model.Endpoint {
	switch a := addr.(type) {
	case *net.TCPAddr:
		return peerEndpoint(a.IP, a.Port)
	case *net.UDPAddr:
		return peerEndpoint(a.IP, a.Port)
	}
	return nil
}

// peerEndpointFromHostPort parses an "ip:port" or bare ip string. Host
// names are not resolved.
func peerEndpointFromHostPort(hostPort string) *model.Endpoint {
	host, port, err := net.SplitHostPort(hostPort)
	if err != nil {
		host, port = hostPort, ""
	}
	p, _ := strconv.Atoi(port)
	return peerEndpoint(net.ParseIP(host), p)
}

func peerEndpoint(ip net.IP, port int) *model.Endpoint {
	if ip == nil || ip.IsUnspecified() {
		return nil
	}
	e := &model.Endpoint{}
	if ip4 := ip.To4(); ip4 != nil {
		e.IPv4 = ip4
	} else {
		e.IPv6 = ip.To16()
	}
	if port > 0 && port <= 0xffff {
		e.Port = uint16(port)
	}
	return e
}
