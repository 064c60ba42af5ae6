package audio

import "log/slog"

// Resolve selects a usable input device from devices.
//
// Selection order: the configured id if it is currently enumerable, then the
// platform default input device, then the first enumerable input device.
// When no input device exists at all, Resolve returns [ErrNoDevice].
func Resolve(devices []Device, configuredID string) (Device, error) {
	inputs := make([]Device, 0, len(devices))
	for _, d := range devices {
		if d.MaxInputChannels > 0 {
			inputs = append(inputs, d)
		}
	}
	if len(inputs) == 0 {
		return Device{}, ErrNoDevice
	}

	if configuredID != "" {
		for _, d := range inputs {
			if d.ID == configuredID {
				return d, nil
			}
		}
		slog.Warn("configured audio device not found, falling back",
			"device_id", configuredID)
	}

	for _, d := range inputs {
		if d.IsDefault {
			return d, nil
		}
	}
	return inputs[0], nil
}
