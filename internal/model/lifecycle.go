package model

// Lifecycle replaces hard deletes: rows are tagged deleted and filtered on read.
type Lifecycle string

const (
	LifecycleActive  Lifecycle = "active"
	LifecycleDeleted Lifecycle = "deleted"
)

func (l Lifecycle) Valid() bool {
	switch l {
	case LifecycleActive, LifecycleDeleted:
		return true
	}
	return false
}

func (l Lifecycle) IsActive() bool { return l == LifecycleActive }
