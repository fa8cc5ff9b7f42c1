// Package runtimeenv implements interfaces.RuntimeEnvProvisioner: an HTTP client to the per-node
// runtime-env agent with bounded exponential-backoff retry, speaking the wireproto octet-stream
// request/reply shapes of the agent's get_or_create_runtime_env endpoint.
package runtimeenv

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/FeckMell/clientproxier/interfaces"
	"github.com/FeckMell/clientproxier/wireproto"
	"github.com/cenkalti/backoff/v5"
)

// ErrAgentFailed is returned when the agent responds with a well-formed FAILED status; the caller
// must not retry.
var ErrAgentFailed = errors.New("runtimeenv: agent reported failure")

// ErrAgentUnreachable is returned once the retry budget is exhausted without a usable response.
var ErrAgentUnreachable = errors.New("runtimeenv: agent unreachable")

const (
	initialInterval       = 500 * time.Millisecond
	multiplier            = 2.0
	maxAdditionalAttempts = 5 // 0.5s, 1s, 2s, 4s, 8s after the first attempt
)

// Provisioner calls a runtime-env agent's get_or_create_runtime_env HTTP endpoint.
type Provisioner struct {
	agentAddr string
	client    *http.Client
}

// NewProvisioner builds a Provisioner against agentAddr (host:port or full base URL).
func NewProvisioner(agentAddr string) *Provisioner {
	if agentAddr == "" {
		panic("adapters/runtimeenv: agent address is required")
	}
	return &Provisioner{
		agentAddr: agentAddr,
		client:    &http.Client{},
	}
}

var _ interfaces.RuntimeEnvProvisioner = (*Provisioner)(nil)

func (p *Provisioner) endpoint() string {
	return "http://" + p.agentAddr + "/get_or_create_runtime_env"
}

// GetOrCreateRuntimeEnv implements interfaces.RuntimeEnvProvisioner.
func (p *Provisioner) GetOrCreateRuntimeEnv(ctx context.Context, serializedEnv, envConfig []byte, jobID string) (string, error) {
	body := wireproto.BuildRuntimeEnvRequest(wireproto.RuntimeEnvRequest{
		SerializedEnv: string(serializedEnv),
		EnvConfig:     envConfig,
		JobID:         jobID,
		SourceProcess: "client_server",
	})

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initialInterval
	b.Multiplier = multiplier
	b.RandomizationFactor = 0

	result, err := backoff.Retry(ctx, func() (string, error) {
		reply, err := p.post(ctx, body)
		if err != nil {
			return "", err
		}
		if reply.OK {
			return reply.SerializedContext, nil
		}
		return "", backoff.Permanent(fmt.Errorf("%w: %s", ErrAgentFailed, reply.ErrorMessage))
	}, backoff.WithBackOff(b), backoff.WithMaxTries(1+maxAdditionalAttempts))

	if err != nil {
		if errors.Is(err, ErrAgentFailed) {
			return "", err
		}
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			return "", err
		}
		return "", fmt.Errorf("%w: %s", ErrAgentUnreachable, err)
	}
	return result, nil
}

func (p *Provisioner) post(ctx context.Context, body []byte) (wireproto.RuntimeEnvReply, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint(), bytes.NewReader(body))
	if err != nil {
		return wireproto.RuntimeEnvReply{}, backoff.Permanent(fmt.Errorf("runtimeenv: build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := p.client.Do(req)
	if err != nil {
		return wireproto.RuntimeEnvReply{}, fmt.Errorf("runtimeenv: post to agent: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return wireproto.RuntimeEnvReply{}, fmt.Errorf("runtimeenv: read agent response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return wireproto.RuntimeEnvReply{}, fmt.Errorf("runtimeenv: agent returned status %d", resp.StatusCode)
	}

	reply, err := wireproto.ParseRuntimeEnvReply(respBody)
	if err != nil {
		return wireproto.RuntimeEnvReply{}, backoff.Permanent(fmt.Errorf("runtimeenv: malformed agent reply: %w", err))
	}
	return reply, nil
}
