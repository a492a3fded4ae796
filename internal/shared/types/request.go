package types

// ExecuteRequest is a tool invocation carried over HTTP.
type ExecuteRequest struct {
	Tool   string                 `json:"tool"`
	Params map[string]interface{} `json:"params"`
}
