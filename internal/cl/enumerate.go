package cl

// EnumeratePlatforms returns every platform of d with its devices filled in,
// in discovery order.
func EnumeratePlatforms(d Driver) ([]PlatformInfo, error) {
	platforms, err := d.Platforms()
	if err != nil {
		return nil, err
	}

	out := make([]PlatformInfo, len(platforms))
	for i, p := range platforms {
		devices, err := p.Devices(DeviceTypeAll)
		if err != nil {
			return nil, err
		}
		info := p.Info()
		info.Devices = make([]DeviceInfo, len(devices))
		for j, dev := range devices {
			info.Devices[j] = dev.Info()
		}
		out[i] = info
	}
	return out, nil
}
