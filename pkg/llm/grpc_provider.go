package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tarsy-labs/extrakt/pkg/external"
	"github.com/tarsy-labs/extrakt/pkg/models"
	pb "github.com/tarsy-labs/extrakt/proto"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// GRPCProvider adapts the extraction RPC service behind the proto-defined
// ExtractionService to the LLMProvider contract. The generated pb package is
// produced by protoc; neither it nor its .proto source is committed to
// this module, the same boundary this module draws around generated ent code.
type GRPCProvider struct {
	conn   *grpc.ClientConn
	client pb.ExtractionServiceClient
	model  string
}

// NewGRPCProvider dials addr and wraps the resulting connection. model names
// the backing LLM model the remote service should use; an empty model lets
// the remote service apply its own default.
func NewGRPCProvider(addr string, model string) (*GRPCProvider, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to extraction service: %w", err)
	}
	return &GRPCProvider{
		conn:   conn,
		client: pb.NewExtractionServiceClient(conn),
		model:  model,
	}, nil
}

// Close releases the underlying gRPC connection.
func (p *GRPCProvider) Close() error {
	return p.conn.Close()
}

// Name identifies this provider in logs and job debug info.
func (p *GRPCProvider) Name() string {
	return "grpc"
}

// IsConfigured reports whether a connection was established.
func (p *GRPCProvider) IsConfigured() bool {
	return p.conn != nil
}

// ExtractEntities marshals opts into the wire request, invokes the remote
// extraction RPC, and unmarshals its structured JSON payload back into an
// ExtractionResult.
func (p *GRPCProvider) ExtractEntities(ctx context.Context, document string, basePrompt string, opts external.LLMOptions) (*models.ExtractionResult, error) {
	schemasJSON, err := json.Marshal(struct {
		ObjectSchemas       map[string]models.ObjectTypeSchema       `json:"object_schemas"`
		RelationshipSchemas map[string]models.RelationshipTypeSchema `json:"relationship_schemas"`
	}{opts.ObjectSchemas, opts.RelationshipSchemas})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schemas: %w", err)
	}

	contextJSON, err := json.Marshal(opts.ExistingEntities)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal existing entities: %w", err)
	}

	if opts.TimeoutMs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(opts.TimeoutMs)*time.Millisecond)
		defer cancel()
	}

	req := &pb.ExtractRequest{
		Document:         document,
		BasePrompt:       basePrompt,
		SchemasJson:      string(schemasJSON),
		AllowedTypes:     opts.AllowedTypes,
		AvailableTags:    opts.AvailableTags,
		ExistingEntities: string(contextJSON),
		Method:           opts.ExtractionMethod,
		Model:            p.model,
		JobId:            opts.Context.JobID,
		ProjectId:        opts.Context.ProjectID,
		TraceId:          opts.Context.TraceID,
	}

	resp, err := p.client.Extract(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("extraction RPC failed: %w", err)
	}

	var result models.ExtractionResult
	if err := json.Unmarshal([]byte(resp.ResultJson), &result); err != nil {
		return nil, fmt.Errorf("failed to parse extraction response: %w", err)
	}
	if result.RawResponse == nil {
		result.RawResponse = map[string]interface{}{}
	}
	if resp.PromptTokens > 0 || resp.CompletionTokens > 0 {
		result.Usage = &models.LLMUsage{
			PromptTokens:     int(resp.PromptTokens),
			CompletionTokens: int(resp.CompletionTokens),
			TotalTokens:      int(resp.PromptTokens + resp.CompletionTokens),
		}
	}
	return &result, nil
}
