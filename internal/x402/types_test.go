package x402

import "testing"

func validRequirement() Requirement {
	return Requirement{
		Scheme:   "exact",
		Network:  "eip155:8453",
		Amount:   "1000",
		Asset:    "USDC",
		PayTo:    "0xabc",
		Resource: "req-1",
	}
}

func TestRequirementValidate(t *testing.T) {
	t.Parallel()

	if err := validRequirement().Validate(); err != nil {
		t.Fatalf("Validate() on a well-formed requirement = %v; want nil", err)
	}

	cases := []struct {
		name string
		fn   func(Requirement) Requirement
	}{
		{"missing scheme", func(r Requirement) Requirement { r.Scheme = ""; return r }},
		{"unknown scheme", func(r Requirement) Requirement { r.Scheme = "bogus"; return r }},
		{"missing network", func(r Requirement) Requirement { r.Network = ""; return r }},
		{"non-CAIP2 network", func(r Requirement) Requirement { r.Network = "base"; return r }},
		{"missing amount", func(r Requirement) Requirement { r.Amount = ""; return r }},
		{"non-numeric amount", func(r Requirement) Requirement { r.Amount = "abc"; return r }},
		{"zero amount", func(r Requirement) Requirement { r.Amount = "0"; return r }},
		{"missing asset", func(r Requirement) Requirement { r.Asset = ""; return r }},
		{"missing pay_to", func(r Requirement) Requirement { r.PayTo = ""; return r }},
		{"missing resource", func(r Requirement) Requirement { r.Resource = ""; return r }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.fn(validRequirement()).Validate(); err == nil {
				t.Fatalf("Validate() = nil; want an error")
			}
		})
	}
}

func TestBuildRequiredPayload(t *testing.T) {
	t.Parallel()

	raw, err := BuildRequiredPayload(validRequirement())
	if err != nil {
		t.Fatalf("BuildRequiredPayload() error = %v", err)
	}
	if raw == "" {
		t.Fatal("BuildRequiredPayload() returned empty payload")
	}

	if _, err := BuildRequiredPayload(Requirement{}); err == nil {
		t.Fatal("BuildRequiredPayload() on an empty requirement = nil error; want one")
	}
}

func TestIsCAIP2Network(t *testing.T) {
	t.Parallel()

	valid := []string{"eip155:8453", "solana:mainnet-beta", "eip155:1"}
	for _, v := range valid {
		if !IsCAIP2Network(v) {
			t.Errorf("IsCAIP2Network(%q) = false; want true", v)
		}
	}

	invalid := []string{"", "base", "eip155", "eip155:", ":8453", "EIP155:8453"}
	for _, v := range invalid {
		if IsCAIP2Network(v) {
			t.Errorf("IsCAIP2Network(%q) = true; want false", v)
		}
	}
}
