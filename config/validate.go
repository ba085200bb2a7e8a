package config

import (
	"errors"
	"fmt"
	"net"
	"reflect"
	"strings"

	"github.com/ZeljkoBenovic/cpaasctl/executor"
	"github.com/docker/go-connections/nat"
)

var (
	ErrInvalidPublicIP     = errors.New("public ip address is not valid")
	ErrInvalidRTPPortRange = errors.New("rtp port range is not valid")
	ErrInvalidKeepLocal    = errors.New("number of local backups to keep must be positive")
)

// MissingError lists every missing prerequisite found in one validation pass
type MissingError struct {
	Variables   []string
	Executables []string
}

func (e *MissingError) Error() string {
	var parts []string

	if len(e.Variables) > 0 {
		parts = append(parts, "missing environment variables: "+strings.Join(e.Variables, ", "))
	}

	if len(e.Executables) > 0 {
		parts = append(parts, "missing executables: "+strings.Join(e.Executables, ", "))
	}

	return strings.Join(parts, "; ")
}

// Validate checks that every required key is set and every executable can be found.
// It has no side effects and must run before anything touches the deployment.
func Validate(cfg Config, executables []string, lookPath executor.LookPathFunc) error {
	missing := &MissingError{
		Variables: missingVariables(reflect.ValueOf(cfg)),
	}

	for _, bin := range executables {
		if _, err := lookPath(bin); err != nil {
			missing.Executables = append(missing.Executables, bin)
		}
	}

	if len(missing.Variables) > 0 || len(missing.Executables) > 0 {
		return missing
	}

	if net.ParseIP(cfg.PublicIP) == nil {
		return fmt.Errorf("%w: %q", ErrInvalidPublicIP, cfg.PublicIP)
	}

	start, end, err := nat.ParsePortRange(cfg.SIP.RTPPortRange)
	if err != nil || start == 0 || start > end {
		return fmt.Errorf("%w: %q", ErrInvalidRTPPortRange, cfg.SIP.RTPPortRange)
	}

	if cfg.Backup.KeepLocal < 1 {
		return ErrInvalidKeepLocal
	}

	return nil
}

// missingVariables walks the struct and returns env keys of required fields left empty
func missingVariables(v reflect.Value) []string {
	var missing []string

	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		value := v.Field(i)

		if field.Type.Kind() == reflect.Struct {
			missing = append(missing, missingVariables(value)...)

			continue
		}

		if field.Tag.Get("required") != "true" {
			continue
		}

		if value.IsZero() {
			missing = append(missing, field.Tag.Get("env"))
		}
	}

	return missing
}
