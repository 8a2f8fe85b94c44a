package config

// mergeConfigs merges override configuration into base
func mergeConfigs(base, override *Config) *Config {
	result := *base

	if override.Version != "" {
		result.Version = override.Version
	}

	if override.Daemon.Socket != "" {
		result.Daemon.Socket = override.Daemon.Socket
	}
	if override.Daemon.ShutdownTimeout != "" {
		result.Daemon.ShutdownTimeout = override.Daemon.ShutdownTimeout
	}
	if override.Watch.DebounceMs != 0 {
		result.Watch.DebounceMs = override.Watch.DebounceMs
	}

	result.Services = mergeServices(base.Services, override.Services)

	// Merge extensions one level deep
	if override.Extensions != nil {
		merged := make(map[string]interface{}, len(base.Extensions)+len(override.Extensions))
		for key, value := range base.Extensions {
			merged[key] = value
		}
		for key, value := range override.Extensions {
			baseMap, baseOk := merged[key].(map[string]interface{})
			overrideMap, overrideOk := value.(map[string]interface{})
			if baseOk && overrideOk {
				combined := make(map[string]interface{}, len(baseMap)+len(overrideMap))
				for k, v := range baseMap {
					combined[k] = v
				}
				for k, v := range overrideMap {
					combined[k] = v
				}
				merged[key] = combined
				continue
			}
			merged[key] = value
		}
		result.Extensions = merged
	}

	return &result
}

func mergeServices(base, override ServicesConfig) ServicesConfig {
	result := base

	if override.Battery.Enabled != nil {
		result.Battery.Enabled = override.Battery.Enabled
	}
	if override.Battery.Icons != "" {
		result.Battery.Icons = override.Battery.Icons
	}

	if override.Bluetooth.Enabled != nil {
		result.Bluetooth.Enabled = override.Bluetooth.Enabled
	}

	if override.Brightness.Enabled != nil {
		result.Brightness.Enabled = override.Brightness.Enabled
	}
	if override.Brightness.PollInterval != "" {
		result.Brightness.PollInterval = override.Brightness.PollInterval
	}

	if override.Clipboard.Enabled != nil {
		result.Clipboard.Enabled = override.Clipboard.Enabled
	}
	if override.Clipboard.MaxEntries != 0 {
		result.Clipboard.MaxEntries = override.Clipboard.MaxEntries
	}

	if override.Applications.Enabled != nil {
		result.Applications.Enabled = override.Applications.Enabled
	}
	if override.Applications.Launcher != "" {
		result.Applications.Launcher = override.Applications.Launcher
	}
	if len(override.Applications.Exclude) > 0 {
		result.Applications.Exclude = append([]string(nil), override.Applications.Exclude...)
	}

	if override.Audio.Enabled != nil {
		result.Audio.Enabled = override.Audio.Enabled
	}

	return result
}
