// Package ports defines the interfaces between the progression engine
// and its collaborators: the story library, the persistent image cache
// and the remote generation service. Adapters under pkg/adapters
// provide the concrete backends.
package ports
