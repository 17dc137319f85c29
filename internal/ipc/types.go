package ipc

// Rect is a pixel rectangle as reported by sway.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// WindowProperties carries the X11 identity of an XWayland window.
type WindowProperties struct {
	Class    string `json:"class"`
	Instance string `json:"instance"`
	Title    string `json:"title"`
}

// Node is a single vertex of the sway layout tree. Only the fields the
// daemon consumes are decoded.
type Node struct {
	ID               int64             `json:"id"`
	Name             string            `json:"name"`
	Type             string            `json:"type"`
	AppID            string            `json:"app_id"`
	PID              int               `json:"pid"`
	Num              int               `json:"num"`
	Output           string            `json:"output"`
	Focused          bool              `json:"focused"`
	Marks            []string          `json:"marks"`
	WindowProperties *WindowProperties `json:"window_properties"`
	FloatingNodes    []Node            `json:"floating_nodes"`
	Nodes            []Node            `json:"nodes"`
}

// WindowClass returns the identity string used for classification: the
// wayland app_id when present, otherwise the XWayland class.
func (n *Node) WindowClass() string {
	if n.AppID != "" {
		return n.AppID
	}
	if n.WindowProperties != nil {
		return n.WindowProperties.Class
	}
	return ""
}

// Instance returns the XWayland instance when known.
func (n *Node) Instance() string {
	if n.WindowProperties != nil {
		return n.WindowProperties.Instance
	}
	return ""
}

// IsWindow reports whether the node represents an application window rather
// than a split container or workspace.
func (n *Node) IsWindow() bool {
	if n.Type != "con" && n.Type != "floating_con" {
		return false
	}
	return n.AppID != "" || n.WindowProperties != nil
}

// Walk visits every node of the subtree in depth-first order, stopping early
// when the visitor returns false.
func (n *Node) Walk(visit func(*Node) bool) bool {
	if n == nil {
		return true
	}
	if !visit(n) {
		return false
	}
	for i := range n.Nodes {
		if !n.Nodes[i].Walk(visit) {
			return false
		}
	}
	for i := range n.FloatingNodes {
		if !n.FloatingNodes[i].Walk(visit) {
			return false
		}
	}
	return true
}

// FindByID locates a node by its tree id, or nil.
func (n *Node) FindByID(id int64) *Node {
	var found *Node
	n.Walk(func(node *Node) bool {
		if node.ID == id {
			found = node
			return false
		}
		return true
	})
	return found
}

// WorkspaceForWindow returns the workspace number containing the window id,
// or 0 when the window is not in the tree.
func (n *Node) WorkspaceForWindow(id int64) int {
	num := 0
	var descend func(node *Node, workspace int) bool
	descend = func(node *Node, workspace int) bool {
		if node.Type == "workspace" {
			workspace = node.Num
		}
		if node.ID == id {
			num = workspace
			return false
		}
		for i := range node.Nodes {
			if !descend(&node.Nodes[i], workspace) {
				return false
			}
		}
		for i := range node.FloatingNodes {
			if !descend(&node.FloatingNodes[i], workspace) {
				return false
			}
		}
		return true
	}
	descend(n, 0)
	return num
}

// Workspace is one entry of a get_workspaces reply.
type Workspace struct {
	Num     int    `json:"num"`
	Name    string `json:"name"`
	Focused bool   `json:"focused"`
	Visible bool   `json:"visible"`
	Output  string `json:"output"`
	Rect    Rect   `json:"rect"`
}

// OutputMode is the active display mode of an output.
type OutputMode struct {
	Width   int `json:"width"`
	Height  int `json:"height"`
	Refresh int `json:"refresh"`
}

// Output is one entry of a get_outputs reply.
type Output struct {
	Name             string     `json:"name"`
	Active           bool       `json:"active"`
	Power            bool       `json:"power"`
	Primary          bool       `json:"primary"`
	Scale            float64    `json:"scale"`
	Transform        string     `json:"transform"`
	CurrentWorkspace string     `json:"current_workspace"`
	CurrentMode      OutputMode `json:"current_mode"`
	Rect             Rect       `json:"rect"`
}

// CommandResult is one entry of a run_command reply.
type CommandResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}
