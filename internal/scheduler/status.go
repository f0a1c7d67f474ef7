package scheduler

// UpdateStatus describes whether the scheduler may start an update.
type UpdateStatus int

// Update statuses, in the order they are checked.
const (
	UpdateStatusReady UpdateStatus = iota
	UpdateStatusInvalidRepo
	UpdateStatusSwitchingMode
	UpdateStatusCompiling
	UpdateStatusBusy
	UpdateStatusUpdating
)

var updateStatusNames = map[UpdateStatus]string{
	UpdateStatusReady:         "ready",
	UpdateStatusInvalidRepo:   "invalid_repository",
	UpdateStatusSwitchingMode: "switching_mode",
	UpdateStatusCompiling:     "compiling",
	UpdateStatusBusy:          "busy",
	UpdateStatusUpdating:      "updating",
}

func (status UpdateStatus) String() string {
	if name, known := updateStatusNames[status]; known {
		return name
	}
	return "unknown"
}

// Environment reports host states that defer updates.
type Environment interface {
	IsSwitchingMode() bool
	IsCompiling() bool
	IsBusy() bool
}

// IdleEnvironment is an Environment that never defers updates.
type IdleEnvironment struct{}

// IsSwitchingMode implements Environment.
func (IdleEnvironment) IsSwitchingMode() bool { return false }

// IsCompiling implements Environment.
func (IdleEnvironment) IsCompiling() bool { return false }

// IsBusy implements Environment.
func (IdleEnvironment) IsBusy() bool { return false }

// Watcher is a consumer of status updates, such as an open window.
// Watchers are compared by equality, so implementations should be pointer types.
type Watcher interface {
	IsValid() bool
	IsWatching() bool
}
