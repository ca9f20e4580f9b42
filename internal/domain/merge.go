package domain

// MergeParams combines a session's browser configuration with a task's
// per-call parameters into the single document sent to the worker. The merge
// is shallow over a flat key space; task parameters win on collision. Either
// input may be nil.
func MergeParams(sessionConfig, taskParams Params) Params {
	merged := make(Params, len(sessionConfig)+len(taskParams))
	for k, v := range sessionConfig {
		merged[k] = v
	}
	for k, v := range taskParams {
		merged[k] = v
	}
	return merged
}
