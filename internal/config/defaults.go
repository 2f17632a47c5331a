package config

// Default returns a config with this module's baseline values.
func Default() Config {
	return Config{
		Version: 1,
		Relays: Relays{
			URLs: []string{"wss://relay.damus.io", "wss://nos.lol"},
		},
		Server: Server{
			MaxSessions:    4096,
			EncryptionMode: "optional",
			Public:         false,
			Stateless:      false,
		},
		Client: Client{
			EncryptionMode: "optional",
			Stateless:      false,
		},
		Payment: Payment{
			Enabled:            false,
			PaymentTTLSeconds:  300,
			MaxPendingPayments: 1000,
			X402: X402{
				Network: "eip155:8453",
				Scheme:  "exact",
			},
		},
	}
}
