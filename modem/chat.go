package modem

import (
	"fmt"
	"strings"
	"time"
)

// chatScript renders a pppd chat script for a dial-up data call. Extra
// init strings run between echo-off and the context definition, giving
// profiles a place for model quirks.
func chatScript(cfg Config, extraInit []string) string {
	var b strings.Builder
	for _, abort := range []string{"BUSY", "ERROR", "NO ANSWER", "NO CARRIER", "NO DIALTONE", "VOICE"} {
		fmt.Fprintf(&b, "ABORT '%s'\n", abort)
	}
	b.WriteString("'' AT\n")
	b.WriteString("OK ATE0\n")
	for _, init := range extraInit {
		fmt.Fprintf(&b, "OK %s\n", init)
	}
	fmt.Fprintf(&b, "OK AT+CGDCONT=1,\"IP\",\"%s\"\n", cfg.APN)
	b.WriteString("OK ATD*99#\n")
	b.WriteString("CONNECT ''\n")
	return b.String()
}

// pppChildren builds the pppd invocation for a rendered chat script.
func pppChildren(cfg Config, scriptPath string) []ChildSpec {
	return []ChildSpec{
		{
			Name: "pppd",
			Args: []string{
				"connect", fmt.Sprintf("chat -v -f %s", scriptPath),
				cfg.Device, "115200",
				"noipdefault", "usepeerdns", "persist", "noauth",
				"novj", "novjccomp", "noccp",
			},
		},
	}
}

// normalizeCommon applies the checks every profile shares.
func normalizeCommon(cfg Config) (Config, error) {
	if cfg.Device == "" {
		return Config{}, ErrNoDevice
	}
	if cfg.APN == "" {
		return Config{}, ErrNoAPN
	}
	if cfg.InitTimeout == 0 {
		cfg.InitTimeout = 30 * time.Second
	}
	return cfg, nil
}
