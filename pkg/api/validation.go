package api

import (
	"fmt"
	"strings"
)

// ValidationConfig holds configurable limits for request validation.
type ValidationConfig struct {
	MaxInputItems      int
	MaxContentSize     int // recursive estimate across all Input items, in bytes
	MaxInstructionSize int
	MaxTools           int
}

// DefaultValidationConfig returns a ValidationConfig with this gateway's
// defaults: a 1000-item input cap, a 5 MiB recursive content estimate
// (summing every text-bearing field across the whole Input slice, not a
// flat top-level byte count), and a 100KB instructions cap.
func DefaultValidationConfig() ValidationConfig {
	return ValidationConfig{
		MaxInputItems:      1000,
		MaxContentSize:      5 * 1024 * 1024,
		MaxInstructionSize:  100 * 1024,
		MaxTools:            128,
	}
}

// ValidateRequest checks a CreateResponseRequest for validity. It returns an
// *APIError describing the first validation failure, or nil if the request is valid.
func ValidateRequest(req *CreateResponseRequest, cfg ValidationConfig) *APIError {
	if req.Model == "" {
		return NewInvalidRequestError("model", "model is required")
	}

	if len(req.Input) == 0 {
		return NewInvalidRequestError("input", "input must contain at least one item")
	}

	if cfg.MaxInputItems > 0 && len(req.Input) > cfg.MaxInputItems {
		return NewInvalidRequestError("input",
			fmt.Sprintf("input exceeds maximum of %d items", cfg.MaxInputItems))
	}

	if cfg.MaxInstructionSize > 0 && len(req.Instructions) > cfg.MaxInstructionSize {
		return NewInvalidRequestError("instructions",
			fmt.Sprintf("instructions exceeds maximum of %d bytes", cfg.MaxInstructionSize))
	}

	if cfg.MaxContentSize > 0 {
		if size := EstimateContentSize(req); size > cfg.MaxContentSize {
			return NewInvalidRequestError("input",
				fmt.Sprintf("input content exceeds maximum of %d bytes (got %d)", cfg.MaxContentSize, size))
		}
	}

	if cfg.MaxTools > 0 && len(req.Tools) > cfg.MaxTools {
		return NewInvalidRequestError("tools",
			fmt.Sprintf("tools exceeds maximum of %d", cfg.MaxTools))
	}

	if req.MaxOutputTokens != nil && *req.MaxOutputTokens <= 0 {
		return NewInvalidRequestError("max_output_tokens", "max_output_tokens must be positive")
	}

	if req.Temperature != nil {
		if *req.Temperature < 0.0 || *req.Temperature > 2.0 {
			return NewInvalidRequestError("temperature", "temperature must be between 0.0 and 2.0")
		}
	}

	if req.TopP != nil {
		if *req.TopP < 0.0 || *req.TopP > 1.0 {
			return NewInvalidRequestError("top_p", "top_p must be between 0.0 and 1.0")
		}
	}

	if req.Truncation != "" && req.Truncation != "auto" && req.Truncation != "disabled" {
		return NewInvalidRequestError("truncation", "truncation must be 'auto' or 'disabled'")
	}

	// Validate tool_choice references an existing tool when forcing a specific function.
	if req.ToolChoice != nil && req.ToolChoice.Function != nil {
		name := req.ToolChoice.Function.Name
		found := false
		for _, tool := range req.Tools {
			if tool.Name == name {
				found = true
				break
			}
		}
		if !found {
			return NewInvalidRequestError("tool_choice",
				fmt.Sprintf("tool_choice references unknown tool %q", name))
		}
	}

	if apiErr := validateStatefulFields(req); apiErr != nil {
		return apiErr
	}

	if apiErr := validateInputItems(req.Input); apiErr != nil {
		return apiErr
	}

	return nil
}

// validateStatefulFields rejects request fields that only make sense with
// server-side conversation persistence, which this gateway never provides —
// every deployment is stateless, not just ones with store=false.
func validateStatefulFields(req *CreateResponseRequest) *APIError {
	if req.Background {
		return NewBackgroundNotSupportedError()
	}
	if req.PreviousResponseID != "" {
		return NewStatefulFieldsNotSupportedError("previous_response_id")
	}
	if len(req.Conversation) > 0 && string(req.Conversation) != "null" {
		return NewStatefulFieldsNotSupportedError("conversation")
	}
	if req.Store != nil && *req.Store {
		return NewStatefulFieldsNotSupportedError("store")
	}
	return nil
}

// validateInputItems runs ValidateItem over every item and additionally
// checks that each function_call_output (or role:"tool" message) references
// a call_id introduced by an earlier function_call item in the same input,
// that no message carries attachments or an input_file content part, and
// that a tool-role message's content is text-like.
func validateInputItems(items []Item) *APIError {
	knownCallIDs := make(map[string]bool)

	for i := range items {
		item := &items[i]
		if apiErr := ValidateItem(item); apiErr != nil {
			return apiErr
		}

		switch item.Type {
		case ItemTypeFunctionCall:
			if item.FunctionCall != nil && item.FunctionCall.CallID != "" {
				knownCallIDs[item.FunctionCall.CallID] = true
			}
		case ItemTypeFunctionCallOutput:
			if item.FunctionCallOutput != nil {
				if !knownCallIDs[item.FunctionCallOutput.CallID] {
					return NewToolOutputOrphanError(item.FunctionCallOutput.CallID)
				}
			}
		case ItemTypeMessage:
			if item.Message != nil {
				if len(item.Message.Attachments) > 0 && string(item.Message.Attachments) != "null" {
					return NewAttachmentsNotSupportedError()
				}
				for _, part := range item.Message.Content {
					if part.Type == "input_file" {
						return NewInputFileNotSupportedError()
					}
				}
				if item.Message.Role == RoleTool {
					if item.Message.ToolCallID == "" || !knownCallIDs[item.Message.ToolCallID] {
						return NewToolOutputOrphanError(item.Message.ToolCallID)
					}
					if !hasTextLikeContent(item.Message.Content) {
						return NewInvalidRequestError("input",
							"a tool-role message content must be non-empty and text-like (text or tool_output)")
					}
				}
			}
		}
	}
	return nil
}

// hasTextLikeContent reports whether every part of a tool-role message's
// content is text-bearing (input_text, output_text, or tool_output), and
// that the content is non-empty.
func hasTextLikeContent(parts []ContentPart) bool {
	if len(parts) == 0 {
		return false
	}
	for _, p := range parts {
		switch p.Type {
		case "input_text", "output_text", "tool_output":
		default:
			return false
		}
	}
	return true
}

// EstimateContentSize sums the length of every text-bearing field across
// the request's instructions and input items: message content/output text,
// reasoning content, and function call names/arguments/outputs. This is a
// recursive estimate of what actually gets serialized to the backend,
// unlike a flat top-level byte count of the raw request body.
func EstimateContentSize(req *CreateResponseRequest) int {
	size := len(req.Instructions)
	for _, item := range req.Input {
		size += estimateItemSize(item)
	}
	return size
}

func estimateItemSize(item Item) int {
	size := 0
	if item.Message != nil {
		for _, p := range item.Message.Content {
			size += len(p.Text) + len(p.URL) + len(p.Data)
		}
		for _, p := range item.Message.Output {
			size += len(p.Text)
		}
	}
	if item.FunctionCall != nil {
		size += len(item.FunctionCall.Name) + len(item.FunctionCall.Arguments)
	}
	if item.FunctionCallOutput != nil {
		size += len(item.FunctionCallOutput.Output)
	}
	if item.Reasoning != nil {
		size += len(item.Reasoning.Content) + len(item.Reasoning.EncryptedContent) + len(item.Reasoning.Summary)
	}
	return size
}

// ValidateItem checks an Item for structural validity.
func ValidateItem(item *Item) *APIError {
	if item.ID != "" && !ValidateItemID(item.ID) {
		return NewInvalidRequestError("id", "invalid item ID format")
	}

	if item.Type == "" {
		return NewInvalidRequestError("type", "item type is required")
	}

	// Check for standard types or extension types.
	if !isStandardItemType(item.Type) && !IsExtensionType(item.Type) {
		return NewInvalidRequestError("type",
			fmt.Sprintf("invalid item type %q: must be a standard type or use provider:type format", item.Type))
	}

	// For extension types, extension data must be present.
	if IsExtensionType(item.Type) {
		if item.Extension == nil {
			return NewInvalidRequestError("extension", "extension items must have extension data")
		}
		return nil
	}

	// For standard types, exactly one type-specific field must be populated.
	count := 0
	if item.Message != nil {
		count++
	}
	if item.FunctionCall != nil {
		count++
	}
	if item.FunctionCallOutput != nil {
		count++
	}
	if item.Reasoning != nil {
		count++
	}

	if count != 1 {
		return NewInvalidRequestError("type",
			"exactly one type-specific field must be populated")
	}

	// Verify the populated field matches the type.
	switch item.Type {
	case ItemTypeMessage:
		if item.Message == nil {
			return NewInvalidRequestError("message", "message field required for message type")
		}
	case ItemTypeFunctionCall:
		if item.FunctionCall == nil {
			return NewInvalidRequestError("function_call", "function_call field required for function_call type")
		}
	case ItemTypeFunctionCallOutput:
		if item.FunctionCallOutput == nil {
			return NewInvalidRequestError("function_call_output", "function_call_output field required for function_call_output type")
		}
	case ItemTypeReasoning:
		if item.Reasoning == nil {
			return NewInvalidRequestError("reasoning", "reasoning field required for reasoning type")
		}
	}

	return nil
}

func isStandardItemType(t ItemType) bool {
	switch t {
	case ItemTypeMessage, ItemTypeFunctionCall, ItemTypeFunctionCallOutput, ItemTypeReasoning:
		return true
	}
	return false
}

// ValidateExtensionType checks whether the given type string is a valid extension
// type (matches "provider:type" pattern with non-empty segments).
func ValidateExtensionType(t string) bool {
	parts := strings.SplitN(t, ":", 2)
	return len(parts) == 2 && parts[0] != "" && parts[1] != ""
}
