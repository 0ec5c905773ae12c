package config

// PublicConfig is the effective configuration with secrets removed, as served
// by GET /api/v1/system/config.
type PublicConfig struct {
	GatewayMode           string   `json:"gateway_mode"`
	GatewayBaseURL        string   `json:"gateway_base_url,omitempty"`
	FetchTimeout          Duration `json:"fetch_timeout"`
	FetchAttempts         int      `json:"fetch_attempts"`
	AwaitTimeout          Duration `json:"await_timeout"`
	AwaitMode             string   `json:"await_mode"`
	SupportedContentTypes []string `json:"supported_content_types"`
	AutoLoadPlaceholders  []string `json:"auto_load_placeholders"`
	NoticeDedupWindow     Duration `json:"notice_dedup_window"`
	ReloadSchedule        string   `json:"reload_schedule"`
	WarmMinInterval       Duration `json:"warm_min_interval"`
	WarmJitter            Duration `json:"warm_jitter"`
	FlushThreshold        int      `json:"display_state_flush_threshold"`
	FlushInterval         Duration `json:"display_state_flush_interval"`
	MetricSampleInterval  Duration `json:"metric_sample_interval"`
	AuthEnabled           bool     `json:"auth_enabled"`
}

// Public returns the secret-free view of cfg.
func (cfg *EnvConfig) Public() PublicConfig {
	types := make([]string, 0, len(cfg.ParsedContentType))
	for _, ct := range cfg.ParsedContentType {
		types = append(types, string(ct))
	}
	autoLoad := append([]string{}, cfg.AutoLoadPlaceholders...)

	pub := PublicConfig{
		GatewayMode:           cfg.GatewayMode,
		FetchTimeout:          Duration(cfg.FetchTimeout),
		FetchAttempts:         cfg.FetchAttempts,
		AwaitTimeout:          Duration(cfg.AwaitTimeout),
		AwaitMode:             string(cfg.ParsedAwaitMode),
		SupportedContentTypes: types,
		AutoLoadPlaceholders:  autoLoad,
		NoticeDedupWindow:     Duration(cfg.NoticeDedupWindow),
		ReloadSchedule:        cfg.ReloadSchedule,
		WarmMinInterval:       Duration(cfg.WarmMinInterval),
		WarmJitter:            Duration(cfg.WarmJitter),
		FlushThreshold:        cfg.DisplayStateFlushThreshold,
		FlushInterval:         Duration(cfg.DisplayStateFlushInterval),
		MetricSampleInterval:  Duration(cfg.MetricSampleInterval),
		AuthEnabled:           cfg.AdminToken != "",
	}
	if cfg.GatewayMode == GatewayModeHTTP {
		pub.GatewayBaseURL = cfg.GatewayBaseURL
	}
	return pub
}
