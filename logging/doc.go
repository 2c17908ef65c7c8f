// Package logging contains the structured logging abstractions used across
// TaskMesh. See Logger for the minimal interface and TaskMeshLogger for the
// contextual implementation.
package logging
