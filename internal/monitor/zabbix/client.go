// Package zabbix reads host and problem status from a monitoring server over
// its JSON-RPC API. Read-only: the portal only renders the results.
package zabbix

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	URL     string
	Token   string
	Timeout time.Duration
}

type Client struct {
	httpClient *http.Client
	url        string
	token      string
	logger     *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		url:        normalizeURL(cfg.URL),
		token:      cfg.Token,
		logger:     logger.With("component", "zabbix"),
	}
}

// normalizeURL ensures the endpoint points at api_jsonrpc.php.
func normalizeURL(url string) string {
	url = strings.TrimRight(strings.TrimSpace(url), "/")
	if !strings.HasSuffix(url, "api_jsonrpc.php") {
		url += "/api_jsonrpc.php"
	}
	return url
}

// Version checks connectivity and returns the server version.
func (c *Client) Version(ctx context.Context) (string, error) {
	var version string
	if err := c.call(ctx, "apiinfo.version", map[string]any{}, &version); err != nil {
		return "", err
	}
	return version, nil
}

// Hosts lists all monitored hosts, sorted by name.
func (c *Client) Hosts(ctx context.Context) ([]Host, error) {
	var hosts []Host
	err := c.call(ctx, "host.get", map[string]any{
		"output":    []string{"hostid", "host", "name", "status"},
		"sortfield": "name",
	}, &hosts)
	return hosts, err
}

// Problems lists active problems for the given hosts.
func (c *Client) Problems(ctx context.Context, hostIDs []string) ([]Problem, error) {
	if len(hostIDs) == 0 {
		return nil, nil
	}
	var problems []Problem
	err := c.call(ctx, "problem.get", map[string]any{
		"hostids":   hostIDs,
		"output":    []string{"eventid", "objectid", "name", "severity", "clock", "acknowledged"},
		"recent":    true,
		"sortfield": []string{"eventid"},
		"sortorder": "DESC",
	}, &problems)
	return problems, err
}

// HostStatus derives a single host's portal status from its active problems.
func (c *Client) HostStatus(ctx context.Context, hostID string) (*ServiceStatus, error) {
	var hosts []Host
	err := c.call(ctx, "host.get", map[string]any{
		"hostids": []string{hostID},
		"output":  []string{"hostid", "host", "name", "status"},
	}, &hosts)
	if err != nil {
		return nil, err
	}
	if len(hosts) == 0 {
		return &ServiceStatus{HostID: hostID, HostName: "Unknown", Status: "unknown", Message: "Host not found"}, nil
	}

	host := hosts[0]
	if host.Status == "1" {
		return &ServiceStatus{HostID: hostID, HostName: host.Name, Status: "unknown", Message: "Monitoring disabled"}, nil
	}

	problems, err := c.Problems(ctx, []string{hostID})
	if err != nil {
		return nil, err
	}
	return buildStatus(host, problems), nil
}

// Statuses derives the portal status of every monitored host.
func (c *Client) Statuses(ctx context.Context) ([]ServiceStatus, error) {
	hosts, err := c.Hosts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list hosts: %w", err)
	}

	statuses := make([]ServiceStatus, 0, len(hosts))
	for _, host := range hosts {
		if host.Status == "1" {
			statuses = append(statuses, ServiceStatus{
				HostID: host.HostID, HostName: host.Name, Status: "unknown", Message: "Monitoring disabled",
			})
			continue
		}
		problems, err := c.Problems(ctx, []string{host.HostID})
		if err != nil {
			c.logger.Warn("failed to fetch problems", "host", host.Name, "error", err)
			statuses = append(statuses, ServiceStatus{
				HostID: host.HostID, HostName: host.Name, Status: "unknown", Message: err.Error(),
			})
			continue
		}
		statuses = append(statuses, *buildStatus(host, problems))
	}
	return statuses, nil
}

func buildStatus(host Host, problems []Problem) *ServiceStatus {
	status := &ServiceStatus{
		HostID:   host.HostID,
		HostName: host.Name,
		Status:   "ok",
		Message:  "All systems operational",
		Problems: []ServiceProblem{},
	}
	if len(problems) == 0 {
		return status
	}

	status.ProblemCount = len(problems)
	status.Message = problems[0].Name
	for _, p := range problems {
		severity, _ := strconv.Atoi(p.Severity)
		if severity > status.HighestSeverity {
			status.HighestSeverity = severity
		}
		sp := ServiceProblem{Name: p.Name, Severity: severity}
		if clock, err := strconv.ParseInt(p.Clock, 10, 64); err == nil {
			sp.Since = time.Unix(clock, 0).UTC()
		}
		status.Problems = append(status.Problems, sp)
	}
	status.Status = severityToStatus(status.HighestSeverity)
	return status
}

func severityToStatus(severity int) string {
	switch {
	case severity >= 5:
		return "down"
	case severity >= 4:
		return "critical"
	case severity >= 2:
		return "warning"
	default:
		return "ok"
	}
}

func (c *Client) call(ctx context.Context, method string, params any, out any) error {
	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      1,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var envelope struct {
		Result json.RawMessage `json:"result"`
		Error  *rpcError       `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if envelope.Error != nil {
		if envelope.Error.Data != "" {
			return fmt.Errorf("%s: %s: %s", method, envelope.Error.Message, envelope.Error.Data)
		}
		return fmt.Errorf("%s: %s", method, envelope.Error.Message)
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return fmt.Errorf("decode result: %w", err)
		}
	}
	return nil
}
