// Package xmltool extracts pseudo-XML tool-call markers
// (<function=NAME>{...json args...}</function>) that some backends emit
// inline in assistant text instead of using the Chat Completions tool_calls
// field, rewriting them into synthetic tool calls the rest of the gateway
// can treat uniformly.
package xmltool
