// Package config handles application configuration.
package config

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// FlexBool is a boolean type that can be unmarshalled from a boolean, a string, or a number.
type FlexBool bool

// UnmarshalYAML implements the yaml.Unmarshaler interface for FlexBool.
func (fb *FlexBool) UnmarshalYAML(value *yaml.Node) error {
	switch value.Tag {
	case "!!bool":
		var b bool
		if err := value.Decode(&b); err != nil {
			return err
		}
		*fb = FlexBool(b)
	case "!!str":
		b, err := strconv.ParseBool(value.Value)
		if err != nil {
			return fmt.Errorf("cannot unmarshal string %q into FlexBool", value.Value)
		}
		*fb = FlexBool(b)
	case "!!int":
		i, err := strconv.Atoi(value.Value)
		if err != nil {
			return err
		}
		*fb = FlexBool(i != 0)
	case "!!float":
		f, err := strconv.ParseFloat(value.Value, 64)
		if err != nil {
			return err
		}
		*fb = FlexBool(f != 0)
	default:
		return fmt.Errorf("cannot unmarshal %s into FlexBool", value.Tag)
	}
	return nil
}

// ClockTime is a time of day in the form "HH:MM", used for the daily price
// snap cutoff.
type ClockTime struct {
	Hour   int
	Minute int
}

// UnmarshalYAML implements the yaml.Unmarshaler interface for ClockTime.
func (ct *ClockTime) UnmarshalYAML(value *yaml.Node) error {
	parts := strings.Split(value.Value, ":")
	if len(parts) != 2 {
		return fmt.Errorf("cannot unmarshal %q into ClockTime, want HH:MM", value.Value)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return fmt.Errorf("invalid hour in ClockTime %q", value.Value)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return fmt.Errorf("invalid minute in ClockTime %q", value.Value)
	}
	ct.Hour, ct.Minute = h, m
	return nil
}

// IsZero reports whether ct is the zero value (midnight, unset).
func (ct ClockTime) IsZero() bool { return ct.Hour == 0 && ct.Minute == 0 }

// Minutes returns the offset from midnight in minutes.
func (ct ClockTime) Minutes() int { return ct.Hour*60 + ct.Minute }

func (ct ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", ct.Hour, ct.Minute)
}
