package core

// Observer receives one-way notifications about runtime activity. Consumed by
// external debugging/visualization tooling; implementations must not block and
// their failures never affect runtime correctness (the engine isolates them).
type Observer interface {
	OnEventDispatched(threadID string, ev AgentEvent)
	OnReducerExecuted(threadID string, ev AgentEvent, result ReducerResult)
	OnStateChanged(threadID string, state State)
	OnCompactionStarted(threadID string, chunkIDs []string)
	OnCompactionCompleted(threadID string, state State, chunkIDs []string)
	OnSubagentSpawned(parentThreadID, childThreadID, stateID string)
	OnSubagentStepped(threadID string, step Step)
	OnSubagentCompleted(parentThreadID, childThreadID string, success bool)
}

// NoOpObserver implements Observer with empty hooks. Embed it to implement
// only the notifications you care about.
type NoOpObserver struct{}

func (NoOpObserver) OnEventDispatched(string, AgentEvent)                {}
func (NoOpObserver) OnReducerExecuted(string, AgentEvent, ReducerResult) {}
func (NoOpObserver) OnStateChanged(string, State)                        {}
func (NoOpObserver) OnCompactionStarted(string, []string)                {}
func (NoOpObserver) OnCompactionCompleted(string, State, []string)       {}
func (NoOpObserver) OnSubagentSpawned(string, string, string)            {}
func (NoOpObserver) OnSubagentStepped(string, Step)                      {}
func (NoOpObserver) OnSubagentCompleted(string, string, bool)            {}
