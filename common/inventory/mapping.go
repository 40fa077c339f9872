package inventory

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ServerDevices is one server entry of a device mapping.
type ServerDevices struct {
	Server  string
	Devices []string
}

// DeviceMapping is a server to devices mapping which keeps the order the
// servers were declared in.
type DeviceMapping []ServerDevices

func (m *DeviceMapping) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping of servers to devices", value.Line)
	}

	out := make(DeviceMapping, 0, len(value.Content)/2)
	for i := 0; i+1 < len(value.Content); i += 2 {
		var devices []string
		if err := value.Content[i+1].Decode(&devices); err != nil {
			return err
		}

		out = append(out, ServerDevices{
			Server:  value.Content[i].Value,
			Devices: devices,
		})
	}

	*m = out
	return nil
}

func (m DeviceMapping) Servers() []string {
	servers := make([]string, 0, len(m))
	for _, entry := range m {
		servers = append(servers, entry.Server)
	}
	return servers
}

// Fileset is a fileset path and its declared size.
type Fileset struct {
	Path string
	Size interface{}
}

// Filesets is an ordered fileset path to size mapping.
type Filesets []Fileset

func (f *Filesets) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping of filesets to sizes", value.Line)
	}

	out := make(Filesets, 0, len(value.Content)/2)
	for i := 0; i+1 < len(value.Content); i += 2 {
		var size interface{}
		if err := value.Content[i+1].Decode(&size); err != nil {
			return err
		}

		out = append(out, Fileset{
			Path: value.Content[i].Value,
			Size: size,
		})
	}

	*f = out
	return nil
}
