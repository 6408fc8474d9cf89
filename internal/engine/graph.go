package engine

import "fmt"

// Node is one step of an executable graph in the engine's wire format.
type Node struct {
	ClassType string         `json:"class_type"`
	Inputs    map[string]any `json:"inputs"`
}

// Graph maps node ids to nodes. Input values are either literals or
// [nodeID, outputSlot] references produced by Ref.
type Graph map[string]Node

const (
	classLoadImage = "LoadImage"
	classSaveImage = "SaveImage"
)

// Ref builds a reference to another node's output slot.
func Ref(nodeID string, slot int) []any {
	return []any{nodeID, slot}
}

// BindInput sets the uploaded engine-local filename on every load node. The
// compiler emits graphs before the upload happens, so the binding is applied
// by the client once the engine has named the file.
func (g Graph) BindInput(filename string) {
	for id, node := range g {
		if node.ClassType != classLoadImage {
			continue
		}
		node.Inputs["image"] = filename
		g[id] = node
	}
}

// Validate checks the structural invariants every compiled graph must hold:
// exactly one terminal persist node and no dangling node references.
func (g Graph) Validate() error {
	saveNodes := 0
	for id, node := range g {
		if node.ClassType == classSaveImage {
			saveNodes++
		}
		for name, value := range node.Inputs {
			ref, ok := asRef(value)
			if !ok {
				continue
			}
			if _, exists := g[ref]; !exists {
				return fmt.Errorf("node %s input %s references missing node %s", id, name, ref)
			}
		}
	}
	if saveNodes != 1 {
		return fmt.Errorf("graph must have exactly one %s node, found %d", classSaveImage, saveNodes)
	}
	return nil
}

func asRef(value any) (string, bool) {
	ref, ok := value.([]any)
	if !ok || len(ref) != 2 {
		return "", false
	}
	id, ok := ref[0].(string)
	return id, ok
}
