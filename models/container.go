package models

// ContainerSummary is the transport-independent shape every adapter variant
// produces for a container listing. Callers cannot tell from the result
// whether it came from the engine API or from CLI output.
type ContainerSummary struct {
	ID      string            `json:"id"`
	Name    string            `json:"name"`
	Image   string            `json:"image"`
	State   string            `json:"state"` // running, exited, created, paused, dead, ...
	Service string            `json:"service,omitempty"` // com.docker.compose.service, when known
	Ports   []Port            `json:"ports,omitempty"`
	Labels  map[string]string `json:"labels,omitempty"`
}

// ContainerStatus is the detailed state of a single container.
type ContainerStatus struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Image      string `json:"image"`
	State      string `json:"state"`
	Running    bool   `json:"running"`
	ExitCode   int    `json:"exitCode"`
	StartedAt  string `json:"startedAt,omitempty"`
	FinishedAt string `json:"finishedAt,omitempty"`
}

// Port describes one published port mapping.
type Port struct {
	HostIP        string `json:"hostIp,omitempty"`
	HostPort      int    `json:"hostPort,omitempty"`
	ContainerPort int    `json:"containerPort"`
	Protocol      string `json:"protocol"`
}
