package engine

import (
	"strings"
	"testing"
)

func TestValidateRejectsDanglingReference(t *testing.T) {
	g := Graph{
		"1": {ClassType: classLoadImage, Inputs: map[string]any{"image": "in.png"}},
		"2": {ClassType: classSaveImage, Inputs: map[string]any{"images": Ref("9", 0)}},
	}
	err := g.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "missing node 9") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidateRequiresSingleSaveNode(t *testing.T) {
	g := Graph{
		"1": {ClassType: classLoadImage, Inputs: map[string]any{"image": "in.png"}},
	}
	if err := g.Validate(); err == nil {
		t.Fatal("expected error for graph without save node")
	}

	g["2"] = Node{ClassType: classSaveImage, Inputs: map[string]any{"images": Ref("1", 0)}}
	g["3"] = Node{ClassType: classSaveImage, Inputs: map[string]any{"images": Ref("1", 0)}}
	if err := g.Validate(); err == nil {
		t.Fatal("expected error for graph with two save nodes")
	}
}

func TestBindInputSetsAllLoadNodes(t *testing.T) {
	g := Graph{
		"1": {ClassType: classLoadImage, Inputs: map[string]any{"image": "placeholder"}},
		"2": {ClassType: classLoadImage, Inputs: map[string]any{"image": "placeholder"}},
		"3": {ClassType: classSaveImage, Inputs: map[string]any{"images": Ref("1", 0)}},
	}
	g.BindInput("uploaded_001.png")
	for _, id := range []string{"1", "2"} {
		if got := g[id].Inputs["image"]; got != "uploaded_001.png" {
			t.Errorf("node %s image = %v", id, got)
		}
	}
	if got := g["3"].Inputs["images"]; got == "uploaded_001.png" {
		t.Error("save node must not be rebound")
	}
}
