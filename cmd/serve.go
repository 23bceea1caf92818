package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/elliotchance/orderedmap/v3"
	"github.com/spf13/cobra"

	"github.com/tern-data/sqlport/core/db"
	"github.com/tern-data/sqlport/core/export"
	"github.com/tern-data/sqlport/core/validation"
	"github.com/tern-data/sqlport/internal/logger"
	"github.com/tern-data/sqlport/internal/version"
)

// protocolVersion is the MCP revision this server speaks.
const protocolVersion = "2024-11-05"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run as a stdio tool server (JSON-RPC 2.0, MCP-style)",
	Long: `Serve a run_sql tool over stdin/stdout: each request line is a JSON-RPC
2.0 message, each response is one JSON line. The connection is fixed for the
server's lifetime and verified eagerly at startup. Results are exchanged via
files, so large result sets never travel through the protocol.`,
	RunE:          runServe,
	SilenceUsage:  true,
	SilenceErrors: true,
}

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// toolSpec pairs a tool's advertised schema with its handler. The handler
// returns the tool's single text reply; it never fails at the RPC level.
type toolSpec struct {
	Description string
	InputSchema map[string]any
	Handler     func(args map[string]any) string
}

type toolServer struct {
	store *db.Store
	tools *orderedmap.OrderedMap[string, toolSpec]
	enc   *json.Encoder
}

func runServe(cmd *cobra.Command, args []string) error {
	logger.SetVerbose(false) // stdout carries the protocol; keep stderr tidy

	dbURL, err := resolveConnectionURL()
	if err != nil {
		return err
	}

	store, err := db.NewStore(dbURL)
	if err != nil {
		return err
	}
	// Eager connection check: fail at startup, not on the first tool call.
	if err := store.Connect(); err != nil {
		return fmt.Errorf("failed to connect to data source: %w", err)
	}
	defer store.Close()

	srv := &toolServer{
		store: store,
		tools: orderedmap.NewOrderedMap[string, toolSpec](),
		enc:   json.NewEncoder(os.Stdout),
	}
	srv.tools.Set("run_sql", runSQLTool(cmd, store))

	logger.Info("sqlport serving on stdio (connection verified)")

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var req rpcRequest
		if err := json.Unmarshal([]byte(line), &req); err != nil {
			srv.reply(rpcResponse{JSONRPC: "2.0", Error: &rpcError{Code: -32700, Message: "parse error"}})
			continue
		}
		srv.handle(req)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading stdin: %w", err)
	}
	return nil
}

func (s *toolServer) handle(req rpcRequest) {
	// Notifications get no response.
	if req.ID == nil {
		return
	}

	switch req.Method {
	case "initialize":
		s.reply(rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: map[string]any{
			"protocolVersion": protocolVersion,
			"serverInfo": map[string]any{
				"name":    "sqlport",
				"version": version.AppVersion,
			},
			"capabilities": map[string]any{"tools": map[string]any{}},
		}})

	case "tools/list":
		var tools []map[string]any
		for name, spec := range s.tools.AllFromFront() {
			tools = append(tools, map[string]any{
				"name":        name,
				"description": spec.Description,
				"inputSchema": spec.InputSchema,
			})
		}
		s.reply(rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: map[string]any{"tools": tools}})

	case "tools/call":
		var params struct {
			Name      string         `json:"name"`
			Arguments map[string]any `json:"arguments"`
		}
		if err := json.Unmarshal(req.Params, &params); err != nil {
			s.reply(rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: -32602, Message: "invalid params"}})
			return
		}
		spec, ok := s.tools.Get(params.Name)
		if !ok {
			s.reply(rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: -32602, Message: fmt.Sprintf("unknown tool %q", params.Name)}})
			return
		}
		text := spec.Handler(params.Arguments)
		s.reply(rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: map[string]any{
			"content": []map[string]any{{"type": "text", "text": text}},
		}})

	default:
		s.reply(rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: -32601, Message: fmt.Sprintf("method %q not found", req.Method)}})
	}
}

func (s *toolServer) reply(resp rpcResponse) {
	if err := s.enc.Encode(resp); err != nil {
		logger.Error("Failed to write response: %v", err)
	}
}

// runSQLTool builds the run_sql tool: execute the SQL in a file and stream
// the result to csv or parquet on disk. The reply is always exactly one
// text message, the job's terminal outcome.
func runSQLTool(cmd *cobra.Command, store *db.Store) toolSpec {
	return toolSpec{
		Description: "Execute SQL and write the result to CSV/Parquet (token-efficient: data is exchanged via files, not inline).",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"sql_file":                map[string]any{"type": "string"},
				"output_path":             map[string]any{"type": "string"},
				"output_format":           map[string]any{"type": "string", "enum": []string{"csv", "parquet"}},
				"batch_size":              map[string]any{"type": "integer"},
				"token_warning_threshold": map[string]any{"type": "integer"},
			},
			"required": []string{"sql_file", "output_path", "output_format"},
		},
		Handler: func(args map[string]any) string {
			sqlFile, _ := args["sql_file"].(string)
			outputPath, _ := args["output_path"].(string)
			outputFormat, _ := args["output_format"].(string)
			if sqlFile == "" || outputPath == "" || outputFormat == "" {
				return "Error: invalid arguments: sql_file, output_path and output_format are required"
			}

			batchSize := export.DefaultBatchSize
			if raw, ok := args["batch_size"]; ok {
				v, isNum := raw.(float64)
				if !isNum {
					return "Error: invalid arguments: batch_size must be a number"
				}
				if int(v) > 0 {
					batchSize = int(v)
				}
			}
			tokenWarn := 0
			if raw, ok := args["token_warning_threshold"]; ok {
				v, isNum := raw.(float64)
				if !isNum {
					return "Error: invalid arguments: token_warning_threshold must be a number"
				}
				if int(v) > 0 {
					tokenWarn = int(v)
				}
			}

			content, err := os.ReadFile(sqlFile)
			if err != nil {
				return fmt.Sprintf("Error: unable to read SQL file %q: %v", sqlFile, err)
			}
			query := string(content)
			if err := validation.ValidateQuery(query); err != nil {
				return fmt.Sprintf("Error: SQL file %q: %v", sqlFile, err)
			}

			result := export.Run(func() (export.BatchSource, error) {
				return store.Stream(cmd.Context(), query, batchSize)
			}, export.Job{
				OutputPath:         outputPath,
				Format:             outputFormat,
				Delimiter:          ',',
				TokenWarnThreshold: tokenWarn,
			})
			return result.Message
		},
	}
}
