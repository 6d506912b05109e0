/*
resource.go - Resource type registration and lookup

PURPOSE:
  Provides a registry for domain packages to register the resources their
  buffers can hold. A resource is an ID plus a type tag; resources sharing a
  tag are interchangeable for automation (two experience fluids from
  different sources both carry the "experience" tag).

HOW IT WORKS:
  1. Domain packages define their ResourceType implementations
  2. Domain packages register them on init()
  3. Storage and snapshots use the registry to reconstruct types

USAGE:
  // In xp/types.go
  func init() {
      generic.RegisterResource(FluidExperience)
  }

  // In store/sqlite
  resourceType := generic.GetOrCreateResource("experience")

SEE ALSO:
  - buffer.go: Buffers compare resources by ID
  - xp/types.go: Experience fluids
  - pump/types.go: World fluids
*/
package generic

import "sync"

// ResourceType identifies what a buffer holds.
// The generic package has NO knowledge of specific resources.
type ResourceType interface {
	// ResourceID returns the unique identifier for this resource.
	ResourceID() string

	// ResourceTag returns the type tag shared by interchangeable resources.
	ResourceTag() string
}

// SameResource compares by ID. Nil never matches.
func SameResource(a, b ResourceType) bool {
	if a == nil || b == nil {
		return false
	}
	return a.ResourceID() == b.ResourceID()
}

// HasTag reports whether r is non-nil and carries tag.
func HasTag(r ResourceType, tag string) bool {
	return r != nil && r.ResourceTag() == tag
}

// =============================================================================
// RESOURCE REGISTRY
// =============================================================================

var (
	resourceRegistry = make(map[string]ResourceType)
	registryMu       sync.RWMutex
)

// RegisterResource adds a resource type to the global registry.
func RegisterResource(r ResourceType) {
	registryMu.Lock()
	defer registryMu.Unlock()
	resourceRegistry[r.ResourceID()] = r
}

// LookupResource finds a registered resource type by ID.
// Returns nil if not found.
func LookupResource(id string) ResourceType {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return resourceRegistry[id]
}

// =============================================================================
// STRING RESOURCE - For testing and fallback
// =============================================================================

// StringResource is a simple string-based resource type.
type StringResource struct {
	ID  string
	Tag string
}

func (r StringResource) ResourceID() string  { return r.ID }
func (r StringResource) ResourceTag() string { return r.Tag }

// GetOrCreateResource looks up a resource type, or creates a StringResource
// with an "unknown" tag. Empty IDs return nil.
func GetOrCreateResource(id string) ResourceType {
	if id == "" {
		return nil
	}
	if r := LookupResource(id); r != nil {
		return r
	}
	return StringResource{ID: id, Tag: "unknown"}
}
