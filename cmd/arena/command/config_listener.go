package command

import (
	"fmt"
	"net"
	"strconv"

	"github.com/pixil98/go-errors"
	"github.com/pixil98/go-arena/internal/listener"
	"github.com/pixil98/go-service"
)

type ListenerType int

const (
	ListenerTypeTelnet ListenerType = iota
	ListenerTypeSSH
)

func (lt ListenerType) String() string {
	if lt == ListenerTypeSSH {
		return "ssh"
	}
	return "telnet"
}

func (lt *ListenerType) UnmarshalText(text []byte) error {
	switch string(text) {
	case "telnet":
		*lt = ListenerTypeTelnet
	case "ssh":
		*lt = ListenerTypeSSH
	default:
		return fmt.Errorf("unknown listener type: %s", text)
	}
	return nil
}

// ListenerConfig exposes the console on one address. Host defaults to every
// interface.
type ListenerConfig struct {
	Protocol    ListenerType `json:"protocol"`
	Host        string       `json:"host,omitempty"`
	Port        uint16       `json:"port"`
	HostKeyPath string       `json:"host_key_path,omitempty"`
}

func (cl *ListenerConfig) addr() string {
	return net.JoinHostPort(cl.Host, strconv.Itoa(int(cl.Port)))
}

func (cl *ListenerConfig) validate() error {
	el := errors.NewErrorList()

	if cl.Port == 0 {
		el.Add(fmt.Errorf("%s port is required", cl.Protocol))
	}
	if cl.HostKeyPath != "" && cl.Protocol != ListenerTypeSSH {
		el.Add(fmt.Errorf("host_key_path is only used by ssh listeners"))
	}

	return el.Err()
}

func (cl *ListenerConfig) buildListener(cm *listener.ConnectionManager) (service.Worker, error) {
	if cl.Protocol == ListenerTypeTelnet {
		return listener.NewTelnetListener(cl.addr(), cm), nil
	}

	hostKey, err := listener.LoadOrGenerateHostKey(cl.HostKeyPath)
	if err != nil {
		return nil, fmt.Errorf("loading ssh host key: %w", err)
	}
	return listener.NewSshListener(cl.addr(), cm, hostKey), nil
}

// validateListeners also rejects two listeners on the same address.
func validateListeners(ls []ListenerConfig) error {
	el := errors.NewErrorList()

	seen := map[string]int{}
	for i, l := range ls {
		if err := l.validate(); err != nil {
			el.Add(fmt.Errorf("listener %d: %w", i, err))
		}
		if j, dup := seen[l.addr()]; dup {
			el.Add(fmt.Errorf("listener %d: address %s already used by listener %d", i, l.addr(), j))
		}
		seen[l.addr()] = i
	}

	return el.Err()
}
