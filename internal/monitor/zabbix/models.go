package zabbix

import "time"

// Host is a monitored host. Status "1" means monitoring is disabled.
type Host struct {
	HostID string `json:"hostid"`
	Host   string `json:"host"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// Problem is an active problem event. Severity is 0-5: Not classified,
// Information, Warning, Average, High, Disaster.
type Problem struct {
	EventID      string `json:"eventid"`
	ObjectID     string `json:"objectid"`
	Name         string `json:"name"`
	Severity     string `json:"severity"`
	Clock        string `json:"clock"`
	Acknowledged string `json:"acknowledged"`
}

// ServiceStatus is the portal-facing status of one monitored host.
type ServiceStatus struct {
	HostID          string           `json:"hostId"`
	HostName        string           `json:"hostName"`
	Status          string           `json:"status"` // ok|warning|critical|down|unknown
	Message         string           `json:"message,omitempty"`
	ProblemCount    int              `json:"problemCount"`
	HighestSeverity int              `json:"highestSeverity"`
	Problems        []ServiceProblem `json:"problems"`
}

type ServiceProblem struct {
	Name     string    `json:"name"`
	Severity int       `json:"severity"`
	Since    time.Time `json:"since"`
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
	ID      int    `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data"`
}
