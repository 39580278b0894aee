package patch

const (
	OperationAdd     = "add"
	OperationReplace = "replace"
	OperationRemove  = "remove"
)

type Operation struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value,omitempty"`
}

// Set returns the operation storing value at pointer.
func Set(pointer string, value any) Operation {
	return Operation{Op: OperationReplace, Path: pointer, Value: value}
}
