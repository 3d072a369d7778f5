package cache

import (
	"time"

	"github.com/cockroachdb/errors"
)

// Factory creates a base cache for id.
type Factory func(id string, opts ...Option) (Cache, error)

// Decorator wraps delegate with one behaviour.
type Decorator func(delegate Cache, opts ...Option) (Cache, error)

// PerpetualFactory creates the default base store.
func PerpetualFactory(id string, _ ...Option) (Cache, error) {
	return NewPerpetual(id), nil
}

func LruDecorator(delegate Cache, _ ...Option) (Cache, error) {
	return NewLru(delegate), nil
}

func FifoDecorator(delegate Cache, _ ...Option) (Cache, error) {
	return NewFifo(delegate), nil
}

func WeakDecorator(delegate Cache, opts ...Option) (Cache, error) {
	return NewWeak(delegate, opts...), nil
}

func ScheduledDecorator(delegate Cache, opts ...Option) (Cache, error) {
	return NewScheduled(delegate, opts...), nil
}

func SerializedDecorator(delegate Cache, _ ...Option) (Cache, error) {
	return NewSerialized(delegate), nil
}

func LoggingDecorator(delegate Cache, opts ...Option) (Cache, error) {
	return NewLogging(delegate, opts...), nil
}

func SynchronizedDecorator(delegate Cache, _ ...Option) (Cache, error) {
	return NewSynchronized(delegate), nil
}

func BlockingDecorator(delegate Cache, opts ...Option) (Cache, error) {
	return NewBlocking(delegate, opts...), nil
}

// Builder assembles a cache chain. The order of the standard layers is fixed:
//
//	Blocking (optional, outermost)
//	  Synchronized
//	    Logging
//	      Serialized (optional)
//	        Scheduled (optional)
//	          custom decorators, last added outermost
//	            base store
//
// Synchronized sits inside Blocking so that a caller holding a key lock while
// it populates the key does not also hold the whole-cache mutex.
type Builder struct {
	id             string
	implementation Factory
	decorators     []Decorator
	size           *int
	clearInterval  *time.Duration
	readWrite      bool
	blocking       bool
	properties     Properties
	opts           []Option
}

// NewBuilder returns a Builder for the cache identified by id.
func NewBuilder(id string) *Builder {
	return &Builder{id: id}
}

// Implementation sets the base cache factory. Defaults to PerpetualFactory.
func (b *Builder) Implementation(f Factory) *Builder {
	b.implementation = f
	return b
}

// AddDecorator appends a custom decorator. Nil is ignored.
func (b *Builder) AddDecorator(d Decorator) *Builder {
	if d != nil {
		b.decorators = append(b.decorators, d)
	}
	return b
}

// Size sets the capacity of the outermost custom decorator if it is a Sizer.
func (b *Builder) Size(size int) *Builder {
	b.size = &size
	return b
}

// ClearInterval adds a ScheduledCache with the given interval.
func (b *Builder) ClearInterval(d time.Duration) *Builder {
	b.clearInterval = &d
	return b
}

// ReadWrite adds a SerializedCache so readers get their own copies.
func (b *Builder) ReadWrite(readWrite bool) *Builder {
	b.readWrite = readWrite
	return b
}

// Blocking adds a BlockingCache as the outermost layer.
func (b *Builder) Blocking(blocking bool) *Builder {
	b.blocking = blocking
	return b
}

// Properties sets the property bag applied to the base cache, each custom
// decorator and the BlockingCache.
func (b *Builder) Properties(p Properties) *Builder {
	b.properties = p
	return b
}

// Options sets the options passed to every layer the Builder creates.
func (b *Builder) Options(opts ...Option) *Builder {
	b.opts = append(b.opts, opts...)
	return b
}

// Build assembles the chain. Any failure aborts assembly with an error
// matching ErrConfiguration; no partially built cache is returned.
func (b *Builder) Build() (Cache, error) {
	implementation, decorators := b.implementation, b.decorators
	if implementation == nil {
		implementation = PerpetualFactory
		if len(decorators) == 0 {
			decorators = []Decorator{LruDecorator}
		}
	}
	c, err := implementation(b.id, b.opts...)
	if err != nil {
		return nil, asConfigError(err, "could not instantiate cache implementation for %s", b.id)
	}
	if c == nil {
		return nil, configErrorf("cache implementation for %s returned no cache", b.id)
	}
	if err := b.configure(c); err != nil {
		return nil, err
	}
	if _, ok := c.(*PerpetualCache); !ok {
		if _, ok := c.(*LoggingCache); !ok {
			c = NewLogging(c, b.opts...)
		}
		return c, nil
	}
	for i, decorate := range decorators {
		next, err := decorate(c, b.opts...)
		if err != nil {
			return nil, asConfigError(err, "could not instantiate cache decorator %d for %s", i, b.id)
		}
		if next == nil {
			return nil, configErrorf("cache decorator %d for %s returned no cache", i, b.id)
		}
		if err := b.configure(next); err != nil {
			return nil, err
		}
		c = next
	}
	return b.standardDecorators(c)
}

func (b *Builder) standardDecorators(c Cache) (Cache, error) {
	if b.size != nil {
		if sizer, ok := c.(Sizer); ok {
			sizer.SetSize(*b.size)
		}
	}
	if b.clearInterval != nil {
		scheduled := NewScheduled(c, b.opts...)
		scheduled.SetClearInterval(*b.clearInterval)
		c = scheduled
	}
	if b.readWrite {
		c = NewSerialized(c)
	}
	c = NewLogging(c, b.opts...)
	c = NewSynchronized(c)
	if b.blocking {
		blocking := NewBlocking(c, b.opts...)
		if err := b.properties.ApplyTo(blocking); err != nil {
			return nil, err
		}
		c = blocking
	}
	return c, nil
}

// configure applies the property bag and runs the Initializer hook.
func (b *Builder) configure(c Cache) error {
	if err := b.properties.ApplyTo(c); err != nil {
		return err
	}
	if init, ok := c.(Initializer); ok {
		if err := init.Initialize(); err != nil {
			return asConfigError(err, "failed cache initialization for %s on %T", c.ID(), c)
		}
	}
	return nil
}

func asConfigError(err error, format string, args ...interface{}) error {
	return errors.Mark(errors.Wrapf(err, format, args...), ErrConfiguration)
}
