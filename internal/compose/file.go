// Package compose deploys single-service docker compose projects to remote
// hosts. It reads the image a host currently runs from the project's
// compose file and rewrites that file to deploy a new one.
package compose

import (
	"bytes"
	"context"
	"fmt"
	"strconv"

	"github.com/compose-spec/compose-go/v2/loader"
	"github.com/compose-spec/compose-go/v2/types"
	"gopkg.in/yaml.v3"

	"github.com/mamatnurahmat/devops-tools/internal/failure"
)

// ParseImage returns the image of the first service, in file order, that
// declares one. A file without such a service yields "".
func ParseImage(ctx context.Context, content []byte) (string, error) {
	if len(bytes.TrimSpace(content)) == 0 {
		return "", nil
	}

	var root yaml.Node
	if err := yaml.Unmarshal(content, &root); err != nil {
		return "", failure.Wrap(failure.InvalidFormat, "compose.parse", fmt.Errorf("invalid YAML: %w", err))
	}
	var dict map[string]any
	if err := root.Decode(&dict); err != nil || dict == nil {
		return "", failure.New(failure.InvalidFormat, "compose.parse", "compose file is not a mapping")
	}

	project, err := loader.LoadWithContext(ctx, types.ConfigDetails{
		ConfigFiles: []types.ConfigFile{{Content: content, Config: dict}},
	}, func(opts *loader.Options) {
		opts.SetProjectName("doq", false)
		opts.SkipNormalization = true
		opts.SkipExtends = true
	})
	if err != nil {
		return "", failure.Wrap(failure.InvalidFormat, "compose.parse", err)
	}

	for _, name := range serviceOrder(&root) {
		if svc, ok := project.Services[name]; ok && svc.Image != "" {
			return svc.Image, nil
		}
	}
	return "", nil
}

// serviceOrder lists the keys of the top-level services mapping as they
// appear in the file.
func serviceOrder(root *yaml.Node) []string {
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil
	}
	doc := root.Content[0]
	for i := 0; i+1 < len(doc.Content); i += 2 {
		if doc.Content[i].Value != "services" {
			continue
		}
		services := doc.Content[i+1]
		var names []string
		for j := 0; j+1 < len(services.Content); j += 2 {
			names = append(names, services.Content[j].Value)
		}
		return names
	}
	return nil
}

// Service describes the single service Render writes.
type Service struct {
	// Name is used for the project, the service and the container.
	Name  string
	Image string
	// Port is published on the host and forwarded to TargetPort.
	Port       string
	TargetPort int
}

type composeFile struct {
	Name     string                    `yaml:"name"`
	Services map[string]composeService `yaml:"services"`
}

type composeService struct {
	ContainerName string        `yaml:"container_name"`
	Image         string        `yaml:"image"`
	NetworkMode   string        `yaml:"network_mode"`
	Ports         []composePort `yaml:"ports"`
	Restart       string        `yaml:"restart"`
}

type composePort struct {
	Mode      string `yaml:"mode"`
	Target    int    `yaml:"target"`
	Published string `yaml:"published"`
	Protocol  string `yaml:"protocol"`
}

// Render produces the compose file for s.
func Render(s Service) ([]byte, error) {
	if s.Name == "" || s.Image == "" || s.Port == "" {
		return nil, failure.New(failure.InvalidFormat, "compose.render", "service name, image and port are required")
	}
	if _, err := strconv.Atoi(s.Port); err != nil {
		return nil, failure.New(failure.InvalidFormat, "compose.render", "port %q is not a number", s.Port)
	}
	target := s.TargetPort
	if target == 0 {
		target = 3000
	}

	f := composeFile{
		Name: s.Name,
		Services: map[string]composeService{
			s.Name: {
				ContainerName: s.Name,
				Image:         s.Image,
				NetworkMode:   "bridge",
				Ports:         []composePort{{Mode: "ingress", Target: target, Published: s.Port, Protocol: "tcp"}},
				Restart:       "always",
			},
		},
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return nil, fmt.Errorf("encode compose file: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode compose file: %w", err)
	}
	return buf.Bytes(), nil
}
