// Package internal contains the implementation packages of webgen.
//
// # Package Organization
//
//   - compositor: joins html, css and js fragments into one document
//   - document: the parsed document model the editor mutates
//   - sandbox: render surfaces, frames and the gated renderer
//   - editor: selection, annotation and the mutation bridge, tied
//     together by a per-website Session
//   - backend: the website and template service, local (SQLite) or remote
//     (REST)
//   - catalog: template folders on disk, watched for changes
//   - published: sanitized rendering of published sites
//   - server: gallery, preview, editor and published-site HTTP routes
//     with the editor and reload WebSockets
//   - views: templ components for every page
//   - appstate: the persisted user, token and theme
//   - config, logging, errors, validation, version, watcher: shared
//     infrastructure
//
// # Data Flow
//
// A template is composed into a document, rendered into a sandboxed frame
// and, once the frame reports ready, annotated into a live view. Edits in
// the live view are applied to the document model by the bridge, the
// document is serialized without editor markers, and the frame is
// re-rendered from the result. Saving sends the serialized HTML to the
// backend.
package internal
