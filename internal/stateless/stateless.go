// Package stateless emulates the initialize handshake locally for clients
// whose peer is a broadcast-only server.
package stateless

import (
	"encoding/json"

	"github.com/nostrmcp/bridge/internal/rpcmsg"
)

const (
	protocolVersion       = "2025-06-18"
	emulatedServerName    = "Emulated-Stateless-Server"
	emulatedServerVersion = "1.0.0"
)

type serverInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type capabilities struct {
	Tools     listChangedCapability `json:"tools"`
	Prompts   listChangedCapability `json:"prompts"`
	Resources resourcesCapability   `json:"resources"`
}

type listChangedCapability struct {
	ListChanged bool `json:"listChanged"`
}

type resourcesCapability struct {
	Subscribe   bool `json:"subscribe"`
	ListChanged bool `json:"listChanged"`
}

type initializeResult struct {
	ProtocolVersion string       `json:"protocolVersion"`
	ServerInfo      serverInfo   `json:"serverInfo"`
	Capabilities    capabilities `json:"capabilities"`
}

// Claim reports whether msg is one the emulator intercepts, and if so
// returns the synthesized response to deliver (nil for a message that
// should simply be dropped, e.g. notifications/initialized).
//
// Callers only invoke Claim when the transport is configured stateless; all
// other messages bypass the emulator entirely.
func Claim(msg rpcmsg.Message) (claimed bool, response *rpcmsg.Message, err error) {
	switch msg.Classify() {
	case rpcmsg.KindRequest:
		if msg.Method != rpcmsg.MethodInitialize {
			return false, nil, nil
		}
		result, err := json.Marshal(initializeResult{
			ProtocolVersion: protocolVersion,
			ServerInfo: serverInfo{
				Name:    emulatedServerName,
				Version: emulatedServerVersion,
			},
			Capabilities: capabilities{
				Tools:     listChangedCapability{ListChanged: true},
				Prompts:   listChangedCapability{ListChanged: true},
				Resources: resourcesCapability{Subscribe: true, ListChanged: true},
			},
		})
		if err != nil {
			return true, nil, err
		}
		resp := rpcmsg.Message{JSONRPC: rpcmsg.Version, ID: msg.ID, Result: result}
		return true, &resp, nil

	case rpcmsg.KindNotification:
		if msg.Method != rpcmsg.MethodNotificationsInitialized {
			return false, nil, nil
		}
		return true, nil, nil

	default:
		return false, nil, nil
	}
}
