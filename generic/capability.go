package generic

// Capability is an optional handle resolved from a host. The zero value is
// the "no capability" variant.
type Capability[T any] struct {
	value   T
	present bool
}

func Some[T any](v T) Capability[T] {
	return Capability[T]{value: v, present: true}
}

func None[T any]() Capability[T] {
	return Capability[T]{}
}

func (c Capability[T]) Present() bool { return c.present }

func (c Capability[T]) Get() (T, bool) { return c.value, c.present }

// IfPresent calls fn with the value when present.
func (c Capability[T]) IfPresent(fn func(T)) {
	if c.present {
		fn(c.value)
	}
}

// BufferProvider is the container capability consumed by upgrades.
type BufferProvider interface {
	Buffer(tag string) Capability[*TransferBuffer]
}
