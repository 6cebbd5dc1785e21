// Package reload pushes live-reload directives to connected development
// clients when a remote application announces a rebuild.
package reload

const (
	// TypeFullReload asks the client to discard and re-render the whole page
	TypeFullReload = "full-reload"

	// TypeConnected is sent once when a client connects
	TypeConnected = "connected"
)

// Directive is the JSON message sent to dev clients. Its shape matches the
// payload dev-server clients already understand.
type Directive struct {
	Type string `json:"type"`
	Path string `json:"path,omitempty"`
	// App names the remote whose rebuild triggered the directive
	App string `json:"app,omitempty"`
}

// FullReload returns a full-reload directive for every page
func FullReload(app string) Directive {
	return Directive{Type: TypeFullReload, Path: "*", App: app}
}

// Announcement is an inbound "remote was rebuilt" signal
type Announcement struct {
	AppName string `json:"appName"`
}
