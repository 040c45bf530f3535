package modem

import (
	"context"
	"fmt"
	"strconv"

	"i4.energy/across/atlink/at"
	"i4.energy/across/atlink/link"
)

// SIM7600 supports the SIMCom SIM7600 family (LTE CAT-1/CAT-4 modules,
// common on Raspberry Pi HATs).
type SIM7600 struct{}

func (SIM7600) Name() string { return "sim7600" }

func (SIM7600) Normalize(cfg Config) (Config, error) {
	return normalizeCommon(cfg)
}

func (SIM7600) RuntimeConfig(cfg Config) (RuntimeConfig, error) {
	script := chatScript(cfg, []string{
		// Automatic network mode; the module remembers manual overrides.
		"AT+CNMP=2",
	})
	path := "/tmp/chatscript.sim7600"
	return RuntimeConfig{
		Files:    []File{{Path: path, Content: script}},
		Children: pppChildren(cfg, path),
	}, nil
}

func (SIM7600) Ready(ctx context.Context, sess *link.Session) error {
	return checkRegistration(ctx, sess)
}

// checkRegistration queries AT+CREG? and accepts home (1) or roaming (5)
// registration.
func checkRegistration(ctx context.Context, sess *link.Session) error {
	resp, err := sess.Send(ctx, at.CmdNetworkReg)
	if err != nil {
		return fmt.Errorf("query network registration: %w", err)
	}
	for _, line := range resp.Lines {
		report, ok := at.ParseReport(line)
		if !ok || report.Type != "CREG" || len(report.Fields) < 2 {
			continue
		}
		stat, err := strconv.Atoi(report.Fields[1])
		if err != nil {
			continue
		}
		if stat == 1 || stat == 5 {
			return nil
		}
		return fmt.Errorf("%w: +CREG stat %d", ErrNotRegistered, stat)
	}
	return fmt.Errorf("%w: no +CREG line in response", ErrNotRegistered)
}
