// Package netcheck reports whether an internet-capable network is active.
// Every implementation answers without blocking.
package netcheck

import (
	"net"
	"time"

	"go.uber.org/atomic"

	"github.com/i474232898/skywatch/internal/common"
	"github.com/i474232898/skywatch/internal/logger"
	"github.com/i474232898/skywatch/internal/scheduler"
	"github.com/i474232898/skywatch/internal/weather"
)

// Interfaces that never carry internet traffic by themselves.
var virtualPrefixes = []string{"docker", "veth", "br-", "virbr", "cni", "flannel"}

// InterfaceChecker inspects the host's network interfaces.
type InterfaceChecker struct {
	// interfaces is swapped in tests.
	interfaces func() ([]net.Interface, error)
	addrs      func(net.Interface) ([]net.Addr, error)
}

// NewInterfaceChecker creates an InterfaceChecker backed by the OS.
func NewInterfaceChecker() *InterfaceChecker {
	return &InterfaceChecker{
		interfaces: net.Interfaces,
		addrs:      func(i net.Interface) ([]net.Addr, error) { return i.Addrs() },
	}
}

// InternetReachable reports whether any physical, up, non-loopback
// interface holds a global unicast address.
func (c *InterfaceChecker) InternetReachable() bool {
	ifaces, err := c.interfaces()
	if err != nil {
		return false
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if common.HasAnyPrefix(iface.Name, virtualPrefixes...) {
			continue
		}

		addrs, err := c.addrs(iface)
		if err != nil {
			continue
		}
		for _, a := range addrs {
			var ip net.IP
			switch v := a.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			}
			if ip != nil && ip.IsGlobalUnicast() {
				return true
			}
		}
	}
	return false
}

// Static always returns the same answer.
type Static bool

func (s Static) InternetReachable() bool { return bool(s) }

// Prober dials a target in the background and caches the result, so
// InternetReachable is a single atomic load.
type Prober struct {
	target  string
	timeout time.Duration
	dial    func(network, address string, timeout time.Duration) (net.Conn, error)

	reachable *atomic.Bool
	sched     *scheduler.Scheduler
	log       *logger.Logger
}

// NewProber creates a Prober for host:port target checked every interval.
// Until the first probe completes the answer comes from initial.
func NewProber(target string, interval time.Duration, initial weather.Reachability, log *logger.Logger) *Prober {
	p := &Prober{
		target:    target,
		timeout:   3 * time.Second,
		dial:      net.DialTimeout,
		reachable: atomic.NewBool(initial.InternetReachable()),
		log:       log.Named("netcheck"),
	}
	p.sched = scheduler.New("reachability-probe", interval, p.Probe, log)
	return p
}

// Start begins periodic probing.
func (p *Prober) Start() error {
	return p.sched.Start()
}

// Stop ends periodic probing.
func (p *Prober) Stop() {
	p.sched.Stop()
}

// Probe dials the target once and records the result.
func (p *Prober) Probe() {
	conn, err := p.dial("tcp", p.target, p.timeout)
	ok := err == nil
	if ok {
		conn.Close()
	}

	if prev := p.reachable.Swap(ok); prev != ok {
		if ok {
			p.log.Info("internet reachable", logger.String("target", p.target))
		} else {
			p.log.Warn("internet unreachable", logger.String("target", p.target), logger.Error(err))
		}
	}
}

func (p *Prober) InternetReachable() bool {
	return p.reachable.Load()
}
