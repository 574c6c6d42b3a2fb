package config

import (
	"strings"
	"testing"
)

// scriptedPrompter answers from a canned map and falls back to the default,
// mimicking an operator hitting enter.
type scriptedPrompter struct {
	answers map[string]string
	asked   []string
}

func (p *scriptedPrompter) Ask(key, _, defaultValue string) (string, error) {
	p.asked = append(p.asked, key)
	if v, ok := p.answers[key]; ok {
		return v, nil
	}
	return defaultValue, nil
}

func TestResolverPrecedence(t *testing.T) {
	t.Setenv(KeyPlatformDomain, "env.example.com")

	t.Run("override wins over environment", func(t *testing.T) {
		r := NewResolver(map[string]string{KeyPlatformDomain: "flag.example.com"}, nil)

		got, err := r.Value(KeyPlatformDomain, "Platform domain", DefaultPlatformDomain)
		if err != nil {
			t.Fatalf("Value() error = %v", err)
		}
		if got != "flag.example.com" {
			t.Errorf("got %q, want the override", got)
		}
	})

	t.Run("environment wins over prompt", func(t *testing.T) {
		prompt := &scriptedPrompter{answers: map[string]string{KeyPlatformDomain: "typed.example.com"}}
		r := NewResolver(nil, prompt)

		got, err := r.Value(KeyPlatformDomain, "Platform domain", DefaultPlatformDomain)
		if err != nil {
			t.Fatalf("Value() error = %v", err)
		}
		if got != "env.example.com" {
			t.Errorf("got %q, want the environment value", got)
		}
		if len(prompt.asked) != 0 {
			t.Errorf("prompter was consulted although the environment had a value")
		}
	})

	t.Run("prompt wins over default", func(t *testing.T) {
		prompt := &scriptedPrompter{answers: map[string]string{KeyInstallPath: "/srv/nerine"}}
		r := NewResolver(nil, prompt)

		got, err := r.Value(KeyInstallPath, "Install path", DefaultInstallPath)
		if err != nil {
			t.Fatalf("Value() error = %v", err)
		}
		if got != "/srv/nerine" {
			t.Errorf("got %q, want the prompted value", got)
		}
	})

	t.Run("default without prompter", func(t *testing.T) {
		r := NewResolver(nil, nil)

		got, err := r.Value(KeyInstallPath, "Install path", DefaultInstallPath)
		if err != nil {
			t.Fatalf("Value() error = %v", err)
		}
		if got != DefaultInstallPath {
			t.Errorf("got %q, want the default", got)
		}
	})
}

func TestResolverBool(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		{"1", true},
		{"true", true},
		{"YES", true},
		{"0", false},
		{"no", false},
		{"nonsense", false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			t.Setenv(KeyTrustProxy, tt.raw)
			r := NewResolver(nil, nil)

			got, err := r.Bool(KeyTrustProxy, "Trust proxy", false)
			if err != nil {
				t.Fatalf("Bool() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Bool(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestResolverPort(t *testing.T) {
	t.Setenv(KeyHTTPPort, "8080")
	r := NewResolver(nil, nil)

	got, err := r.Port(KeyHTTPPort, "HTTP port", 80)
	if err != nil {
		t.Fatalf("Port() error = %v", err)
	}
	if got != 8080 {
		t.Errorf("Port() = %d, want 8080", got)
	}

	t.Setenv(KeyHTTPPort, "not-a-port")
	if _, err := r.Port(KeyHTTPPort, "HTTP port", 80); err == nil {
		t.Error("Port() accepted a non-numeric value")
	}
}

func TestLoadWithExplicitExternalIP(t *testing.T) {
	r := NewResolver(map[string]string{
		KeyPlatformDomain:   "ctf.example.com",
		KeyChallengesDomain: "challs.example.com",
		KeyExternalIP:       "203.0.113.9",
	}, nil)

	cfg, err := Load(r)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.ExternalIP != "203.0.113.9" {
		t.Errorf("ExternalIP = %q, want the explicit value", cfg.ExternalIP)
	}
	if cfg.ChallengesDomain != "challs.example.com" {
		t.Errorf("ChallengesDomain = %q", cfg.ChallengesDomain)
	}
	if !cfg.AddPlatformRoutes {
		t.Error("AddPlatformRoutes should default to true")
	}
}

// A resolvable challenges domain never reaches the manual IP prompt.
func TestLoadSkipsIPPromptWhenDomainResolves(t *testing.T) {
	prompt := &scriptedPrompter{}
	r := NewResolver(map[string]string{
		KeyPlatformDomain:   "ctf.example.com",
		KeyChallengesDomain: "203.0.113.9",
	}, prompt)

	cfg, err := Load(r)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.ExternalIP != "203.0.113.9" {
		t.Errorf("ExternalIP = %q, want the resolved address", cfg.ExternalIP)
	}
	for _, k := range prompt.asked {
		if k == KeyExternalIP {
			t.Errorf("prompter consulted for %s although the domain resolves", KeyExternalIP)
		}
	}
}

// An unresolvable challenges domain degrades to the manual IP prompt.
func TestLoadPromptsForUnresolvableIP(t *testing.T) {
	prompt := &scriptedPrompter{answers: map[string]string{
		KeyExternalIP: "10.0.0.5",
	}}
	r := NewResolver(map[string]string{
		KeyPlatformDomain:   "ctf.example.com",
		KeyChallengesDomain: "challs.test.invalid",
	}, prompt)

	cfg, err := Load(r)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.ExternalIP != "10.0.0.5" {
		t.Errorf("ExternalIP = %q, want the manually supplied address", cfg.ExternalIP)
	}

	askedIP := false
	for _, k := range prompt.asked {
		if k == KeyExternalIP {
			askedIP = true
		}
	}
	if !askedIP {
		t.Error("operator was never asked for the external IP")
	}
}

func TestLoadFailsWithoutIP(t *testing.T) {
	r := NewResolver(map[string]string{
		KeyPlatformDomain:   "ctf.example.com",
		KeyChallengesDomain: "challs.test.invalid",
	}, nil)

	_, err := Load(r)
	if err == nil {
		t.Fatal("Load() succeeded without any external IP")
	}
	if !strings.Contains(err.Error(), KeyExternalIP) {
		t.Errorf("error %q does not point the operator at %s", err, KeyExternalIP)
	}
}

func TestLoadLocalDevNeedsNoIP(t *testing.T) {
	r := NewResolver(map[string]string{
		KeyPlatformDomain:   "nerine.localhost",
		KeyChallengesDomain: "challs.nerine.localhost.invalid",
		KeyLocalDev:         "true",
	}, nil)

	cfg, err := Load(r)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.LocalDev {
		t.Error("LocalDev not set")
	}
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		name   string
		answer string
		want   bool
	}{
		{"explicit yes", "y", true},
		{"spelled out", "yes", true},
		{"empty aborts", "", false},
		{"anything else aborts", "sure", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &TerminalPrompter{
				In:  strings.NewReader(tt.answer + "\n"),
				Out: &strings.Builder{},
			}

			got, err := Confirm(p, "Re-key the install?")
			if err != nil {
				t.Fatalf("Confirm() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Confirm(%q) = %v, want %v", tt.answer, got, tt.want)
			}
		})
	}

	t.Run("nil prompter declines", func(t *testing.T) {
		got, err := Confirm(nil, "Re-key the install?")
		if err != nil {
			t.Fatalf("Confirm() error = %v", err)
		}
		if got {
			t.Error("nil prompter must decline")
		}
	})
}
