/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package types

import "fmt"

// Error codes returned to MCP clients. Codes classify the failure; the
// message names the offending field or subsystem.
const (
	ErrValidation = "VALIDATION"
	ErrNotFound   = "NOT_FOUND"
	ErrStorage    = "STORAGE"
	ErrEmbedding  = "EMBEDDING"
	ErrEvaluation = "EVALUATION"
	ErrTimeout    = "TIMEOUT"
	ErrInternal   = "INTERNAL"
)

// MCPError provides structured error information for MCP responses
type MCPError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewMCPError creates a new structured MCP error
func NewMCPError(code string, message string, details map[string]interface{}) *MCPError {
	return &MCPError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// ValidationError reports an input precondition failure on a named field.
func ValidationError(field, message string) *MCPError {
	return NewMCPError(ErrValidation, message, map[string]interface{}{"field": field})
}

// StorageError wraps a database failure with a redacted detail string.
// The underlying error text is kept out of the client-facing message.
func StorageError(op string) *MCPError {
	return NewMCPError(ErrStorage, fmt.Sprintf("storage operation failed: %s", op), nil)
}

// TimeoutError reports a deadline expiry for the named operation.
func TimeoutError(op string) *MCPError {
	return NewMCPError(ErrTimeout, fmt.Sprintf("deadline exceeded: %s", op), nil)
}

// ToolError is the wire shape for tool failures: {error, details, tool}.
type ToolError struct {
	Error   string                 `json:"error"`
	Details map[string]interface{} `json:"details,omitempty"`
	Tool    string                 `json:"tool"`
}

// NewToolError builds the client-facing error payload for a tool. Secrets
// and raw inputs must never be placed in Details.
func NewToolError(tool string, err error) ToolError {
	if mcpErr, ok := err.(*MCPError); ok {
		return ToolError{Error: mcpErr.Message, Details: withCode(mcpErr.Details, mcpErr.Code), Tool: tool}
	}
	return ToolError{Error: err.Error(), Details: map[string]interface{}{"code": ErrInternal}, Tool: tool}
}

func withCode(details map[string]interface{}, code string) map[string]interface{} {
	if details == nil {
		details = map[string]interface{}{}
	}
	details["code"] = code
	return details
}
