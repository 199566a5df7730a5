// Package panel serves the versionwatch admin web panel.
//
// The panel is a small static page embedded with go:embed. It reads the
// files list and broker state from the /api/v1/ws WebSocket and edits them
// through the REST API. Unknown paths fall back to index.html.
package panel
