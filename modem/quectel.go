package modem

import (
	"context"

	"i4.energy/across/atlink/link"
)

// QuectelBG96 supports the Quectel BG96 LTE CAT-M1/NB-IoT module.
type QuectelBG96 struct{}

func (QuectelBG96) Name() string { return "quectel-bg96" }

func (QuectelBG96) Normalize(cfg Config) (Config, error) {
	return normalizeCommon(cfg)
}

func (QuectelBG96) RuntimeConfig(cfg Config) (RuntimeConfig, error) {
	script := chatScript(cfg, []string{
		// Scan LTE first; the BG96 otherwise wastes minutes on GSM.
		`AT+QCFG="nwscanseq",020301`,
		`AT+QCFG="iotopmode",2`,
	})
	path := "/tmp/chatscript.quectel_bg96"
	return RuntimeConfig{
		Files:    []File{{Path: path, Content: script}},
		Children: pppChildren(cfg, path),
	}, nil
}

func (QuectelBG96) Ready(ctx context.Context, sess *link.Session) error {
	return checkRegistration(ctx, sess)
}
