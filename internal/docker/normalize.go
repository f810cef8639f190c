package docker

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/go-connections/nat"

	"evalgo.org/dockhand/models"
)

// This file is the result normalizer: engine API objects, docker CLI JSON
// lines, and Compose listing output all collapse into the same
// ContainerSummary/ContainerStatus shapes, so callers cannot tell which
// transport produced a result.

const composeServiceLabel = "com.docker.compose.service"

// summaryFromEngine converts an engine API container listing entry.
func summaryFromEngine(c container.Summary) models.ContainerSummary {
	name := ""
	if len(c.Names) > 0 {
		name = strings.TrimPrefix(c.Names[0], "/")
	}

	summary := models.ContainerSummary{
		ID:      c.ID,
		Name:    name,
		Image:   c.Image,
		State:   c.State,
		Service: c.Labels[composeServiceLabel],
		Labels:  c.Labels,
	}

	for _, p := range c.Ports {
		summary.Ports = append(summary.Ports, models.Port{
			HostIP:        p.IP,
			HostPort:      int(p.PublicPort),
			ContainerPort: int(p.PrivatePort),
			Protocol:      p.Type,
		})
	}
	sortPorts(summary.Ports)

	return summary
}

// statusFromEngine converts an engine API inspect response.
func statusFromEngine(info container.InspectResponse) *models.ContainerStatus {
	status := &models.ContainerStatus{
		ID:   info.ID,
		Name: strings.TrimPrefix(info.Name, "/"),
	}
	if info.Config != nil {
		status.Image = info.Config.Image
	}
	if info.State != nil {
		status.State = info.State.Status
		status.Running = info.State.Running
		status.ExitCode = info.State.ExitCode
		status.StartedAt = info.State.StartedAt
		status.FinishedAt = info.State.FinishedAt
	}
	return status
}

// cliPSLine is one line of `docker ps --format '{{json .}}'` output.
type cliPSLine struct {
	ID     string `json:"ID"`
	Image  string `json:"Image"`
	Names  string `json:"Names"`
	Ports  string `json:"Ports"`
	State  string `json:"State"`
	Labels string `json:"Labels"`
}

// summariesFromCLI parses newline-delimited JSON from the docker CLI.
func summariesFromCLI(output string) ([]models.ContainerSummary, error) {
	summaries := []models.ContainerSummary{}

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var entry cliPSLine
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			return nil, models.WrapError(models.KindRemoteCommand, err,
				"unparseable docker CLI output line")
		}

		labels := parseCLILabels(entry.Labels)
		summaries = append(summaries, models.ContainerSummary{
			ID:      entry.ID,
			Name:    entry.Names,
			Image:   entry.Image,
			State:   entry.State,
			Service: labels[composeServiceLabel],
			Ports:   parseCLIPorts(entry.Ports),
			Labels:  labels,
		})
	}

	return summaries, nil
}

// cliInspect is the subset of `docker inspect` JSON the status operation needs.
type cliInspect struct {
	ID     string `json:"Id"`
	Name   string `json:"Name"`
	Config struct {
		Image string `json:"Image"`
	} `json:"Config"`
	State struct {
		Status     string `json:"Status"`
		Running    bool   `json:"Running"`
		ExitCode   int    `json:"ExitCode"`
		StartedAt  string `json:"StartedAt"`
		FinishedAt string `json:"FinishedAt"`
	} `json:"State"`
}

// statusFromCLI parses `docker inspect --format '{{json .}}'` output.
func statusFromCLI(output string) (*models.ContainerStatus, error) {
	var info cliInspect
	if err := json.Unmarshal([]byte(strings.TrimSpace(output)), &info); err != nil {
		return nil, models.WrapError(models.KindRemoteCommand, err,
			"unparseable docker inspect output")
	}

	return &models.ContainerStatus{
		ID:         info.ID,
		Name:       strings.TrimPrefix(info.Name, "/"),
		Image:      info.Config.Image,
		State:      info.State.Status,
		Running:    info.State.Running,
		ExitCode:   info.State.ExitCode,
		StartedAt:  info.State.StartedAt,
		FinishedAt: info.State.FinishedAt,
	}, nil
}

// composePSLine is one entry of `docker compose ps --format json` output.
type composePSLine struct {
	ID         string `json:"ID"`
	Name       string `json:"Name"`
	Image      string `json:"Image"`
	Service    string `json:"Service"`
	State      string `json:"State"`
	Publishers []struct {
		URL           string `json:"URL"`
		TargetPort    int    `json:"TargetPort"`
		PublishedPort int    `json:"PublishedPort"`
		Protocol      string `json:"Protocol"`
	} `json:"Publishers"`
}

// SummariesFromComposePS parses Compose's structured listing output.
// Compose v2.21 and later emit one JSON object per line; older releases
// emit a single JSON array.
func SummariesFromComposePS(output string) ([]models.ContainerSummary, error) {
	summaries := []models.ContainerSummary{}

	trimmed := strings.TrimSpace(output)
	if strings.HasPrefix(trimmed, "[") {
		var entries []composePSLine
		if err := json.Unmarshal([]byte(trimmed), &entries); err != nil {
			return nil, models.WrapError(models.KindRemoteCommand, err,
				"unparseable compose ps output")
		}
		for _, entry := range entries {
			summaries = append(summaries, summaryFromComposePS(entry))
		}
		return summaries, nil
	}

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var entry composePSLine
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			return nil, models.WrapError(models.KindRemoteCommand, err,
				"unparseable compose ps output line")
		}

		summaries = append(summaries, summaryFromComposePS(entry))
	}

	return summaries, nil
}

func summaryFromComposePS(entry composePSLine) models.ContainerSummary {
	summary := models.ContainerSummary{
		ID:      entry.ID,
		Name:    entry.Name,
		Image:   entry.Image,
		State:   entry.State,
		Service: entry.Service,
	}
	for _, pub := range entry.Publishers {
		summary.Ports = append(summary.Ports, models.Port{
			HostIP:        pub.URL,
			HostPort:      pub.PublishedPort,
			ContainerPort: pub.TargetPort,
			Protocol:      pub.Protocol,
		})
	}
	sortPorts(summary.Ports)
	return summary
}

// parseCLIPorts parses the docker ps display format, for example
// "0.0.0.0:8080->80/tcp, 443/tcp".
func parseCLIPorts(spec string) []models.Port {
	var ports []models.Port

	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		var hostIP string
		var hostPort int

		// The published side precedes "->"; the container side is a
		// nat-style port/proto pair either way.
		portProto := part
		if idx := strings.Index(part, "->"); idx >= 0 {
			published := part[:idx]
			portProto = part[idx+2:]
			if colon := strings.LastIndex(published, ":"); colon >= 0 {
				hostIP = published[:colon]
				if p, err := nat.ParsePort(published[colon+1:]); err == nil {
					hostPort = p
				}
			}
		}

		proto, portRange := nat.SplitProtoPort(portProto)
		containerPort, err := nat.ParsePort(portRange)
		if err != nil {
			continue
		}

		ports = append(ports, models.Port{
			HostIP:        hostIP,
			HostPort:      hostPort,
			ContainerPort: containerPort,
			Protocol:      proto,
		})
	}

	sortPorts(ports)
	return ports
}

// parseCLILabels parses the comma-joined "k=v" label format of docker ps.
func parseCLILabels(spec string) map[string]string {
	if spec == "" {
		return nil
	}
	labels := make(map[string]string)
	for _, pair := range strings.Split(spec, ",") {
		if k, v, ok := strings.Cut(pair, "="); ok {
			labels[k] = v
		}
	}
	return labels
}

func sortPorts(ports []models.Port) {
	sort.Slice(ports, func(i, j int) bool {
		return ports[i].ContainerPort < ports[j].ContainerPort
	})
}
