// Package agent invokes the conversational agent through the Bedrock agent runtime.
package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/types"
	"github.com/aws/smithy-go"
	"github.com/sirupsen/logrus"

	"github.com/0xcro3dile/coursebridge/internal/domain/ports"
	"github.com/0xcro3dile/coursebridge/internal/domain/resilience"
)

const defaultTimeout = 120 * time.Second

// eventStream is the part of *bedrockagentruntime.InvokeAgentEventStream the invoker reads.
type eventStream interface {
	Events() <-chan types.ResponseStream
	Close() error
	Err() error
}

type invokeFunc func(ctx context.Context, in *bedrockagentruntime.InvokeAgentInput) (eventStream, error)

// Options configures the runtime client.
type Options struct {
	Region   string
	Endpoint string // optional endpoint override
	Timeout  time.Duration
}

// BedrockInvoker implements ports.AgentInvoker with InvokeAgent.
type BedrockInvoker struct {
	invoke  invokeFunc
	timeout time.Duration
	log     logrus.FieldLogger
}

// NewBedrockInvoker loads AWS credentials from the default chain and creates the invoker.
// The SDK's own retryer is limited to one attempt; throttling is retried by the caller's policy.
func NewBedrockInvoker(ctx context.Context, opts Options, log logrus.FieldLogger) (*BedrockInvoker, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(opts.Region))
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := bedrockagentruntime.NewFromConfig(awsCfg, func(o *bedrockagentruntime.Options) {
		o.RetryMaxAttempts = 1
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
	})

	return newBedrockInvoker(clientInvoke(client), opts.Timeout, log), nil
}

func clientInvoke(client *bedrockagentruntime.Client) invokeFunc {
	return func(ctx context.Context, in *bedrockagentruntime.InvokeAgentInput) (eventStream, error) {
		out, err := client.InvokeAgent(ctx, in)
		if err != nil {
			return nil, err
		}
		return out.GetStream(), nil
	}
}

func newBedrockInvoker(invoke invokeFunc, timeout time.Duration, log logrus.FieldLogger) *BedrockInvoker {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &BedrockInvoker{
		invoke:  invoke,
		timeout: timeout,
		log:     log.WithField("component", "agent"),
	}
}

// Invoke starts one agent turn. Service errors are returned as
// *resilience.StatusError so throttling can be retried by the caller.
func (b *BedrockInvoker) Invoke(ctx context.Context, req ports.AgentRequest) (<-chan ports.AgentEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)

	stream, err := b.invoke(ctx, &bedrockagentruntime.InvokeAgentInput{
		AgentId:      aws.String(req.AgentID),
		AgentAliasId: aws.String(req.AgentAliasID),
		SessionId:    aws.String(req.SessionID),
		InputText:    aws.String(req.InputText),
		EnableTrace:  aws.Bool(req.EnableTrace),
	})
	if err != nil {
		cancel()
		return nil, statusError(err)
	}

	ch := make(chan ports.AgentEvent, 16)

	go func() {
		defer cancel()
		defer close(ch)
		defer stream.Close()

		emit := func(ev ports.AgentEvent) bool {
			select {
			case ch <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for event := range stream.Events() {
			switch v := event.(type) {
			case *types.ResponseStreamMemberChunk:
				if !emit(ports.AgentEvent{Chunk: v.Value.Bytes}) {
					return
				}
			case *types.ResponseStreamMemberTrace:
				trace := map[string]any{
					"agentId":   aws.ToString(v.Value.AgentId),
					"sessionId": aws.ToString(v.Value.SessionId),
					"trace":     v.Value.Trace,
				}
				if !emit(ports.AgentEvent{Trace: trace}) {
					return
				}
			default:
				b.log.WithField("event", fmt.Sprintf("%T", event)).Debug("Ignoring agent stream event")
			}
		}

		if err := stream.Err(); err != nil {
			emit(ports.AgentEvent{Err: statusError(err)})
		}
	}()

	return ch, nil
}

// statusError carries the service error code (ThrottlingException and friends)
// and the HTTP status into the resilience classifier.
func statusError(err error) error {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("invoking agent: %w", err)
	}

	status := 0
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		status = respErr.HTTPStatusCode()
	}
	return &resilience.StatusError{StatusCode: status, Code: apiErr.ErrorCode(), Message: apiErr.ErrorMessage()}
}
